package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/detect"
	"github.com/crawlmeter/crawlmeter/internal/models"
	"github.com/crawlmeter/crawlmeter/internal/policy"
	"github.com/crawlmeter/crawlmeter/internal/revenue"
)

type ClassifyInput struct {
	UserAgent string            `json:"user_agent"`
	ClientIP  string            `json:"client_ip,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type ClassifyOutput struct {
	IsBot       bool     `json:"is_bot"`
	Confidence  int      `json:"confidence"`
	PrimaryType string   `json:"primary_type"`
	Company     string   `json:"company,omitempty"`
	Methods     []string `json:"methods"`
	Revenue     float64  `json:"revenue"`
	Action      string   `json:"action"`
}

type EstimateRevenueInput struct {
	BotType    string `json:"bot_type"`
	Confidence int    `json:"confidence"`
	URL        string `json:"url,omitempty"`
	Priority   int    `json:"priority,omitempty"`
}

type EstimateRevenueOutput struct {
	Revenue float64 `json:"revenue"`
}

// DetectionServer exposes the classification pipeline over MCP so
// agent tooling can query verdicts without the HTTP surface.
type DetectionServer struct {
	engine     *detect.Engine
	calculator *revenue.Calculator
	logger     *zap.Logger
}

// ClassifyUserAgent runs the stateless pipeline stages over the input.
// Behavioral analysis and rate limiting need shared stores and are not
// part of the MCP surface.
func (s *DetectionServer) ClassifyUserAgent(ctx context.Context, req *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, ClassifyOutput, error) {
	if input.UserAgent == "" && input.ClientIP == "" {
		return nil, ClassifyOutput{}, fmt.Errorf("user_agent or client_ip is required")
	}

	v := s.engine.Evaluate(ctx, models.RequestContext{
		UserAgent: input.UserAgent,
		ClientIP:  input.ClientIP,
		URL:       input.URL,
		Headers:   input.Headers,
	})

	return nil, ClassifyOutput{
		IsBot:       v.IsBot,
		Confidence:  v.Confidence,
		PrimaryType: v.PrimaryType,
		Company:     v.Company,
		Methods:     v.Methods,
		Revenue:     v.Revenue,
		Action:      string(v.Action),
	}, nil
}

// EstimateRevenue prices a hypothetical detection without running the
// pipeline.
func (s *DetectionServer) EstimateRevenue(ctx context.Context, req *mcp.CallToolRequest, input EstimateRevenueInput) (*mcp.CallToolResult, EstimateRevenueOutput, error) {
	if input.Confidence < 0 || input.Confidence > 100 {
		return nil, EstimateRevenueOutput{}, fmt.Errorf("confidence must be between 0 and 100")
	}

	rc := models.RequestContext{URL: input.URL, Priority: input.Priority}
	amount := s.calculator.Calculate(true, input.Confidence, input.BotType, 0, rc)
	return nil, EstimateRevenueOutput{Revenue: amount}, nil
}

func main() {
	// Logs must go to stderr so they do not corrupt the stdio framing.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("crawlmeter-mcp").With(zap.String("service", "crawlmeter-mcp"))

	calculator := revenue.NewCalculator(revenue.DefaultConfig())
	engineCfg := detect.DefaultConfig()
	engine := detect.NewEngine(engineCfg, nil, nil, calculator, policy.Default(engineCfg.MinConfidence), logger, nil)
	engine.SetSignatures(detect.DefaultSignatures())
	engine.SetIPRanges(detect.DefaultIPRanges())

	detectionServer := &DetectionServer{
		engine:     engine,
		calculator: calculator,
		logger:     logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "crawlmeter",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_user_agent",
		Description: "Classify a user agent and client IP as bot or human traffic",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_agent": map[string]interface{}{
					"type":        "string",
					"description": "User agent string to classify",
				},
				"client_ip": map[string]interface{}{
					"type":        "string",
					"description": "Client IP address (optional, enables IP range checks)",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Requested URL path (optional, affects revenue)",
				},
				"headers": map[string]interface{}{
					"type":        "object",
					"description": "Request headers (optional, enables header analysis)",
				},
			},
			"required": []string{"user_agent"},
		},
	}, detectionServer.ClassifyUserAgent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "estimate_revenue",
		Description: "Estimate attributable revenue for a bot detection",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"bot_type": map[string]interface{}{
					"type":        "string",
					"description": "Bot type, e.g. ai-crawler or scraper",
				},
				"confidence": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"maximum":     100,
					"description": "Detection confidence 0-100",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Requested URL path (optional)",
				},
				"priority": map[string]interface{}{
					"type":        "integer",
					"description": "License priority tier (optional)",
				},
			},
			"required": []string{"bot_type", "confidence"},
		},
	}, detectionServer.EstimateRevenue)

	logger.Info("MCP server running via stdio")

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
