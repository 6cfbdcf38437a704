package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/sirupsen/logrus"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// LambdaScheme is the URL scheme routed to the Lambda transport:
// lambda://<function-name>[?qualifier=<alias>].
const LambdaScheme = "lambda"

// LambdaInvoker is the subset of the Lambda client used here.
type LambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Lambda sends wire requests as synchronous Lambda invocations. The request
// body is the invocation payload.
type Lambda struct {
	client LambdaInvoker
	log    logrus.FieldLogger
}

// NewLambda creates a Lambda transport from the default AWS config.
func NewLambda(ctx context.Context, log logrus.FieldLogger) (*Lambda, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewLambdaWithClient(lambda.NewFromConfig(cfg), log), nil
}

// NewLambdaWithClient creates a Lambda transport over client.
func NewLambdaWithClient(client LambdaInvoker, log logrus.FieldLogger) *Lambda {
	return &Lambda{client: client, log: log}
}

// Send implements Transport. A function error is reported as a 502 with the
// error payload as the body.
func (l *Lambda) Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("parse url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, LambdaScheme) || u.Host == "" {
		return domain.RawResponse{}, fmt.Errorf("not a lambda url: %q", req.URL)
	}

	input := &lambda.InvokeInput{
		FunctionName: aws.String(u.Host),
		Payload:      req.Body,
	}
	if q := u.Query().Get("qualifier"); q != "" {
		input.Qualifier = aws.String(q)
	}

	result, err := l.client.Invoke(ctx, input)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("failed to invoke %s: %w", u.Host, err)
	}

	if result.FunctionError != nil {
		l.log.WithFields(logrus.Fields{
			"function": u.Host,
			"error":    *result.FunctionError,
		}).Warn("lambda function error")
		return domain.RawResponse{Status: http.StatusBadGateway, Body: result.Payload}, nil
	}

	status := int(result.StatusCode)
	if status == 0 {
		status = http.StatusOK
	}
	return domain.RawResponse{Status: status, Body: result.Payload}, nil
}
