// ABOUTME: ses task executor — sends an email via Amazon SES
// ABOUTME: dryRun: true simulates the send and reports the would-be envelope without calling AWS

package ses

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	sesapi "github.com/aws/aws-sdk-go/service/ses"

	"github.com/corewave/orchestrator/pkg/types"
)

// Executor implements an ses-kind TaskDefinition. Its Spec/resolvedInput carry:
//
//	region, from, to ([]string), subject, body, bodyHtml, charset, dryRun
//	credentials: {accessKeyId, secretAccessKey, sessionToken}
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	cfg := parseConfig(resolvedInput, taskDef.Spec)
	if err := validate(cfg); err != nil {
		return fail(start, err.Error()), nil
	}

	if cfg.dryRun {
		output := types.TaskOutput{
			"dryRun": true, "from": cfg.from, "to": cfg.to, "subject": cfg.subject, "region": cfg.region,
		}
		return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
	}

	messageID, err := send(cfg)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	output := types.TaskOutput{"messageId": messageID, "from": cfg.from, "to": cfg.to, "subject": cfg.subject, "region": cfg.region}
	return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
}

type config struct {
	region, accessKeyID, secretAccessKey, sessionToken string
	from, subject, body, bodyHTML, charset              string
	to                                                   []string
	dryRun                                               bool
}

func parseConfig(resolvedInput, spec map[string]interface{}) *config {
	cfg := &config{charset: "UTF-8"}
	merge := func(m map[string]interface{}) {
		if v, ok := m["region"].(string); ok {
			cfg.region = v
		}
		if v, ok := m["from"].(string); ok {
			cfg.from = v
		}
		if v, ok := m["subject"].(string); ok {
			cfg.subject = v
		}
		if v, ok := m["body"].(string); ok {
			cfg.body = v
		}
		if v, ok := m["bodyHtml"].(string); ok {
			cfg.bodyHTML = v
		}
		if v, ok := m["charset"].(string); ok {
			cfg.charset = v
		}
		if v, ok := m["dryRun"].(bool); ok {
			cfg.dryRun = v
		}
		if v, ok := m["to"].([]interface{}); ok {
			cfg.to = nil
			for _, item := range v {
				if s, ok := item.(string); ok {
					cfg.to = append(cfg.to, s)
				}
			}
		}
		if raw, ok := m["credentials"].(map[string]interface{}); ok {
			if v, ok := raw["accessKeyId"].(string); ok {
				cfg.accessKeyID = v
			}
			if v, ok := raw["secretAccessKey"].(string); ok {
				cfg.secretAccessKey = v
			}
			if v, ok := raw["sessionToken"].(string); ok {
				cfg.sessionToken = v
			}
		}
	}
	merge(spec)
	merge(resolvedInput)
	return cfg
}

func validate(cfg *config) error {
	if cfg.region == "" {
		return fmt.Errorf("ses task requires 'region'")
	}
	if cfg.from == "" {
		return fmt.Errorf("ses task requires 'from'")
	}
	if len(cfg.to) == 0 {
		return fmt.Errorf("ses task requires at least one 'to' address")
	}
	if cfg.subject == "" {
		return fmt.Errorf("ses task requires 'subject'")
	}
	if cfg.body == "" && cfg.bodyHTML == "" {
		return fmt.Errorf("ses task requires 'body' or 'bodyHtml'")
	}
	return nil
}

func fail(start time.Time, msg string) *types.TaskExecutionResult {
	return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: msg, Duration: time.Since(start)}
}

func send(cfg *config) (string, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.region)}
	if cfg.accessKeyID != "" && cfg.secretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.accessKeyID, cfg.secretAccessKey, cfg.sessionToken)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return "", fmt.Errorf("creating AWS session: %w", err)
	}
	svc := sesapi.New(sess)

	body := &sesapi.Body{}
	if cfg.body != "" {
		body.Text = &sesapi.Content{Charset: aws.String(cfg.charset), Data: aws.String(cfg.body)}
	}
	if cfg.bodyHTML != "" {
		body.Html = &sesapi.Content{Charset: aws.String(cfg.charset), Data: aws.String(cfg.bodyHTML)}
	}

	input := &sesapi.SendEmailInput{
		Source:      aws.String(cfg.from),
		Destination: &sesapi.Destination{ToAddresses: aws.StringSlice(cfg.to)},
		Message: &sesapi.Message{
			Subject: &sesapi.Content{Charset: aws.String(cfg.charset), Data: aws.String(cfg.subject)},
			Body:    body,
		},
	}

	out, err := svc.SendEmail(input)
	if err != nil {
		return "", fmt.Errorf("sending via SES: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}
