package awsclient

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/broker"
)

func testCreds() broker.Credentials {
	return broker.Credentials{
		AccessKeyID:     "ASIATEST",
		SecretAccessKey: "test-secret",
		SessionToken:    "test-token",
	}
}

func TestAWSConfigDefaultsRegion(t *testing.T) {
	f := New(zerolog.Nop())

	cfg := f.awsConfig(testCreds(), "")
	if cfg.Region != DefaultRegion {
		t.Errorf("expected default region %q, got %q", DefaultRegion, cfg.Region)
	}

	cfg = f.awsConfig(testCreds(), "us-east-1")
	if cfg.Region != "us-east-1" {
		t.Errorf("explicit region must win, got %q", cfg.Region)
	}

	got, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.AccessKeyID != "ASIATEST" || got.SessionToken != "test-token" {
		t.Error("config must carry the supplied credential triple")
	}
}

func TestBuildClientByName(t *testing.T) {
	f := New(zerolog.Nop())

	c, err := f.BuildClient("cloudtrail", testCreds(), "")
	if err != nil {
		t.Fatalf("cloudtrail: %v", err)
	}
	if _, ok := c.(*cloudtrail.Client); !ok {
		t.Errorf("expected *cloudtrail.Client, got %T", c)
	}

	c, err = f.BuildClient("s3", testCreds(), "us-west-2")
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if _, ok := c.(*s3.Client); !ok {
		t.Errorf("expected *s3.Client, got %T", c)
	}

	for _, alias := range []string{"logs", "cloudwatchlogs"} {
		c, err = f.BuildClient(alias, testCreds(), "")
		if err != nil {
			t.Fatalf("%s: %v", alias, err)
		}
		if _, ok := c.(*cloudwatchlogs.Client); !ok {
			t.Errorf("%s: expected *cloudwatchlogs.Client, got %T", alias, c)
		}
	}
}

func TestBuildClientUnknownService(t *testing.T) {
	f := New(zerolog.Nop())
	if _, err := f.BuildClient("dynamodb-streams", testCreds(), ""); err == nil {
		t.Error("unknown service name must return an error")
	}
}

func TestRateLimiterSpacesCalls(t *testing.T) {
	rl := NewRateLimiter(50)

	start := time.Now()
	rl.Wait("sts")
	rl.Wait("sts")
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("second call should have been delayed, elapsed %v", elapsed)
	}

	// Distinct services are limited independently.
	start = time.Now()
	rl.Wait("ec2")
	if elapsed := time.Since(start); elapsed > 15*time.Millisecond {
		t.Errorf("different service should not be delayed, elapsed %v", elapsed)
	}
}
