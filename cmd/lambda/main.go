// Package main is the entry point for the translation gateway Lambda function.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/sirupsen/logrus"

	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/engine"
	"github.com/pricofy/translation-gateway/internal/handler"
	"github.com/pricofy/translation-gateway/internal/logging"
)

// app is the state kept across invocations of one instance.
type app struct {
	engine   *engine.Engine
	invoker  invoker
	function string
	log      logrus.FieldLogger
}

func main() {
	ctx := context.Background()
	log := logrus.New()

	a, err := newApp(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	lambda.Start(a.handleRequest)
}

func newApp(ctx context.Context) (*app, error) {
	v, err := config.NewViper(os.Getenv("TRGW_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if settings.Opus.Qualifier == "" {
		settings.Opus.Qualifier = environment()
	}

	log, err := logging.New(settings.Logging.Level, settings.Logging.Format, os.Stdout)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := lambdasdk.NewFromConfig(cfg)

	e, err := engine.New(ctx, settings,
		engine.WithLogger(log),
		engine.WithLambdaClient(client),
		engine.WithStore(config.NewMemoryStore(nil)),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		engine:   e,
		invoker:  client,
		function: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		log:      log,
	}, nil
}

// environment is the deployment stage, used as the translator alias.
func environment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "dev"
}

func (a *app) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return a.HandleWarmup(ctx, warmup)
	}

	// Parse the request and delegate to the handler
	var req handler.Request
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}

	return a.engine.Handler.Handle(ctx, req)
}
