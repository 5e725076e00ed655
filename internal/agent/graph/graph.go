package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/chative-sales/server/internal/agent/graph/nodes"
	"github.com/chative-sales/server/internal/agent/graph/observers"
	"github.com/chative-sales/server/internal/agent/model"
	logx "github.com/chative-sales/server/pkg/logger"
)

// maxRunSteps covers the longest path (START, nine nodes, END) with headroom.
const maxRunSteps = 20

// Runner executes one turn and returns the reply, or nil when nothing should be sent.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.ComposedReply, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels  *nodes.ChatModels
	Transcripts nodes.TranscriptSource
	Assembler   nodes.ContextAssembler
}

// GraphBuilder handles the construction of the turn graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.ComposedReply]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.ComposedReply]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.ComposedReply, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()...))
}

// NewRunner builds and compiles the turn graph.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Turn graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled turn graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.ComposedReply], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	cms := config.ChatModels
	if cms == nil || cms.Extraction == nil || cms.Classifier == nil || cms.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Transcripts == nil {
		return nil, fmt.Errorf("transcript source is nil")
	}
	if config.Assembler == nil {
		return nil, fmt.Errorf("context assembler is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.ComposedReply](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{Status: model.EmptyStatus()}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cms := b.config.ChatModels

	add := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeSlotPrompt,
				nodes.NewSlotPromptNode(b.config.Transcripts),
				compose.WithStatePreHandler(nodes.NewSlotPromptPreHandler()),
			)
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeSlotExtractorModel, cms.Extraction,
				compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeSlotExtractorModel, cms.ExtractionModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeSlotParser,
				nodes.NewSlotParserNode(),
				compose.WithStatePostHandler(nodes.NewSlotParserPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeFieldResolver,
				nodes.NewFieldResolverNode(),
				compose.WithStatePostHandler(nodes.NewFieldResolverPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeContextAssembler,
				nodes.NewContextAssemblerNode(b.config.Assembler),
				compose.WithStatePostHandler(nodes.NewContextAssemblerPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeCollectPrompt, nodes.NewCollectPromptNode())
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeCollectModel, cms.Response,
				compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeCollectModel, cms.ResponseModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeCollectParser, nodes.NewCollectParserNode())
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeIntentPrompt, nodes.NewIntentPromptNode())
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeIntentModel, cms.Classifier,
				compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeIntentModel, cms.ClassifierModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeOrderSummarizer, nodes.NewOrderSummarizerNode())
		},
	}
	for _, fn := range add {
		if err := fn(); err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeSlotPrompt},
		{nodes.NodeSlotPrompt, nodes.NodeSlotExtractorModel},
		{nodes.NodeSlotExtractorModel, nodes.NodeSlotParser},
		{nodes.NodeSlotParser, nodes.NodeFieldResolver},
		{nodes.NodeFieldResolver, nodes.NodeContextAssembler},
		{nodes.NodeCollectPrompt, nodes.NodeCollectModel},
		{nodes.NodeCollectModel, nodes.NodeCollectParser},
		{nodes.NodeCollectParser, compose.END},
		{nodes.NodeIntentPrompt, nodes.NodeIntentModel},
		{nodes.NodeIntentModel, nodes.NodeOrderSummarizer},
		{nodes.NodeOrderSummarizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the assembled context to the collecting or complete composer.
func (b *GraphBuilder) addBranches() error {
	composerBranch := compose.NewGraphBranch(
		nodes.NewComposerCondition(),
		map[string]bool{
			nodes.NodeCollectPrompt: true,
			nodes.NodeIntentPrompt:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeContextAssembler, composerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding composer branch")
		return fmt.Errorf("error adding composer branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.ComposedReply], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
