package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/risk"
)

// escalationPriority is the triage priority at which a case alert leaves
// the device. Below it, the case waits for routine review.
const escalationPriority = 4

// EscalationAlert is the message the alerting pipeline (SMS/voice
// dispatch, out of scope here) consumes from the queue.
type EscalationAlert struct {
	CaseID   string   `json:"caseId"`
	Level    string   `json:"level"`
	Priority int      `json:"priority"`
	Score    int      `json:"score"`
	Factors  []string `json:"factors"`
	RaisedAt string   `json:"raisedAt"`
	DeviceID string   `json:"deviceId"`
}

// EscalationDispatcher pushes high-priority assessments onto an SQS
// queue for ASHA and clinician notification.
type EscalationDispatcher struct {
	client   *sqs.Client
	queueURL string
	deviceID string
}

func NewEscalationDispatcher(ctx context.Context, queueName, deviceID string) (*EscalationDispatcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: &queueName})
	if err != nil {
		return nil, fmt.Errorf("failed to get SQS queue URL: %w", err)
	}

	return &EscalationDispatcher{client: client, queueURL: *resp.QueueUrl, deviceID: deviceID}, nil
}

// Dispatch sends an alert when the assessment crosses the escalation
// threshold. Lower-priority assessments are skipped, not errors.
func (d *EscalationDispatcher) Dispatch(ctx context.Context, caseID string, assessment risk.Assessment) error {
	if assessment.Priority < escalationPriority {
		return nil
	}

	alert := EscalationAlert{
		CaseID:   caseID,
		Level:    string(assessment.Level),
		Priority: assessment.Priority,
		Score:    assessment.Score,
		Factors:  assessment.Factors,
		RaisedAt: time.Now().Format(time.RFC3339),
		DeviceID: d.deviceID,
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal escalation alert for case %s: %w", caseID, err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &d.queueURL,
		MessageBody: aws.String(string(body)),
	})
	return err
}
