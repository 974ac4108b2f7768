package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func doneEvent() Event {
	return Event{TaskID: "t1", Kind: "segment_frames", Status: segclient.StatusDone}
}

func TestSQSPublisherSendsAttributes(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", queueURL: "https://sqs/q", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), doneEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://sqs/q" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["task_id"]
	if !ok || aws.ToString(attr.StringValue) != "t1" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("task_id attribute missing or wrong: %#v", attr)
	}
	if aws.ToString(client.input.MessageAttributes["status"].StringValue) != "done" {
		t.Fatalf("status attribute missing")
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"task_id":"t1"`) {
		t.Fatalf("body missing task id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSPublisherWrapsError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	pub := &sqsPublisher{id: "queue", queueURL: "https://sqs/q", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), doneEvent()); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSNSPublisherSendsMessage(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "topic", topicARN: "arn:aws:sns:::topic", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), doneEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	if aws.ToString(client.input.MessageAttributes["kind"].StringValue) != "segment_frames" {
		t.Fatalf("kind attribute missing: %#v", client.input.MessageAttributes)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"status":"done"`) {
		t.Fatalf("message missing status: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSPublisherError(t *testing.T) {
	client := &fakeSNSClient{err: errors.New("throttled")}
	pub := &snsPublisher{id: "topic", topicARN: "arn", client: client, log: noopLogger{}}

	if err := pub.Publish(context.Background(), doneEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}
