// Package tools implements the chat-facing operations of the bot: trail
// lookups, login and error reviews, security sweeps and account search.
// Every operation resolves its own cross-account credential, so a tool
// call against any registered tenant account is self-contained.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/awsclient"
	"github.com/jwjoung/cloudtrail-bot/internal/broker"
	"github.com/jwjoung/cloudtrail-bot/internal/credential"
	"github.com/jwjoung/cloudtrail-bot/internal/directory"
)

const (
	// LookupEvents caps MaxResults at 50 server-side.
	lookupMax = 50

	// AnalyzeSecurity pages at most this many times per sweep.
	securityPageLimit = 3
)

// securityEventNames maps a finding category to the management events that
// belong to it. An event joins its first matching category only.
var securityEventNames = map[string][]string{
	"iam": {
		"CreateUser", "DeleteUser", "CreateAccessKey", "DeleteAccessKey",
		"CreateRole", "DeleteRole", "AttachUserPolicy", "DetachUserPolicy",
		"AttachRolePolicy", "DetachRolePolicy", "PutUserPolicy", "PutRolePolicy",
		"CreateGroup", "DeleteGroup", "AddUserToGroup", "RemoveUserFromGroup",
		"UpdateLoginProfile", "CreateLoginProfile", "DeleteLoginProfile",
		"DeactivateMFADevice", "EnableMFADevice", "CreateVirtualMFADevice",
	},
	"security_group": {
		"AuthorizeSecurityGroupIngress", "AuthorizeSecurityGroupEgress",
		"RevokeSecurityGroupIngress", "RevokeSecurityGroupEgress",
		"CreateSecurityGroup", "DeleteSecurityGroup",
	},
	"network": {
		"CreateVpc", "DeleteVpc", "CreateSubnet", "DeleteSubnet",
		"CreateInternetGateway", "DeleteInternetGateway",
		"CreateNatGateway", "DeleteNatGateway",
	},
	"kms": {
		"CreateKey", "ScheduleKeyDeletion", "DisableKey",
		"PutKeyPolicy", "CreateGrant", "RevokeGrant",
	},
	"cloudtrail": {
		"StopLogging", "DeleteTrail", "UpdateTrail",
	},
	"s3": {
		"PutBucketPolicy", "DeleteBucketPolicy", "PutBucketAcl",
		"PutBucketPublicAccessBlock", "DeleteBucketPublicAccessBlock",
	},
}

// lookupEventsAPI is the slice of the trail service the tools call.
type lookupEventsAPI interface {
	LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// eventDetail is the subset of the raw trail record the tools read.
type eventDetail struct {
	EventSource     string `json:"eventSource"`
	AWSRegion       string `json:"awsRegion"`
	SourceIPAddress string `json:"sourceIPAddress"`
	ErrorCode       string `json:"errorCode"`
	ErrorMessage    string `json:"errorMessage"`
	UserIdentity    struct {
		Type string `json:"type"`
	} `json:"userIdentity"`
	ResponseElements struct {
		ConsoleLogin string `json:"ConsoleLogin"`
	} `json:"responseElements"`
	AdditionalEventData struct {
		MFAUsed string `json:"MFAUsed"`
	} `json:"additionalEventData"`
}

func parseDetail(ev types.Event) eventDetail {
	var d eventDetail
	if raw := aws.ToString(ev.CloudTrailEvent); raw != "" {
		json.Unmarshal([]byte(raw), &d)
	}
	return d
}

// CredentialSource is the slice of the credential service the tools use.
type CredentialSource interface {
	ResolveByAccountID(ctx context.Context, accountID string) (*credential.Issued, error)
	SearchAccount(ctx context.Context, term string) (*directory.AccountRecord, error)
	LookupAccount(ctx context.Context, accountID string) (*directory.AccountRecord, error)
}

// CloudTrail bundles the trail lookup tools around one credential source.
type CloudTrail struct {
	creds   CredentialSource
	factory *awsclient.Factory
	logger  zerolog.Logger

	// Seams for tests.
	now       func() time.Time
	newClient func(c broker.Credentials, region string) lookupEventsAPI
}

func NewCloudTrail(creds CredentialSource, factory *awsclient.Factory, logger zerolog.Logger) *CloudTrail {
	return &CloudTrail{
		creds:   creds,
		factory: factory,
		logger:  logger.With().Str("component", "tools").Logger(),
		now:     time.Now,
		newClient: func(c broker.Credentials, region string) lookupEventsAPI {
			return factory.CloudTrailClient(c, region)
		},
	}
}

func (t *CloudTrail) client(ctx context.Context, accountID, region string) (lookupEventsAPI, *credential.Issued, error) {
	issued, err := t.creds.ResolveByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	t.factory.WaitForService("cloudtrail")
	return t.newClient(issued.Credentials, region), issued, nil
}

// LookupRequest describes one trail query. Exactly one of the four filter
// fields is honored; LookupEvents accepts a single attribute per call and
// the first non-empty one in field order wins.
type LookupRequest struct {
	AccountID    string
	StartTime    string
	EndTime      string
	EventName    string
	Username     string
	ResourceName string
	EventSource  string
	Region       string
	MaxResults   int
}

func (r LookupRequest) attribute() *types.LookupAttribute {
	pairs := []struct {
		key   types.LookupAttributeKey
		value string
	}{
		{types.LookupAttributeKeyEventName, r.EventName},
		{types.LookupAttributeKeyUsername, r.Username},
		{types.LookupAttributeKeyResourceName, r.ResourceName},
		{types.LookupAttributeKeyEventSource, r.EventSource},
	}
	for _, p := range pairs {
		if p.value != "" {
			return &types.LookupAttribute{AttributeKey: p.key, AttributeValue: aws.String(p.value)}
		}
	}
	return nil
}

func clampResults(n int) int32 {
	if n <= 0 || n > lookupMax {
		return lookupMax
	}
	return int32(n)
}

// LookupEvents queries the account's trail and renders the matches.
func (t *CloudTrail) LookupEvents(ctx context.Context, req LookupRequest) (string, error) {
	client, issued, err := t.client(ctx, req.AccountID, req.Region)
	if err != nil {
		return "", err
	}

	now := t.now()
	start := ParseTimeInput(orDefault(req.StartTime, "1 day ago"), now)
	end := ParseTimeInput(orDefault(req.EndTime, "now"), now)

	input := &cloudtrail.LookupEventsInput{
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		MaxResults: aws.Int32(clampResults(req.MaxResults)),
	}
	if attr := req.attribute(); attr != nil {
		input.LookupAttributes = []types.LookupAttribute{*attr}
	}

	t.logger.Info().
		Str("account_id", req.AccountID).
		Str("region", req.Region).
		Time("start", start).
		Time("end", end).
		Msg("trail lookup")

	out, err := client.LookupEvents(ctx, input)
	if err != nil {
		return "", fmt.Errorf("looking up trail events: %w", err)
	}

	if len(out.Events) == 0 {
		return fmt.Sprintf("No matching events in account %s between %s and %s.",
			req.AccountID, start.Format(time.RFC3339), end.Format(time.RFC3339)), nil
	}
	return renderLookupReport(issued.Account.CorpName, req.AccountID, req.Region, start, end, out.Events), nil
}

// ConsoleLogins reviews console sign-in activity. Sign-in events land in
// us-east-1 regardless of where the account operates.
func (t *CloudTrail) ConsoleLogins(ctx context.Context, accountID, startTime, region string, maxResults int) (string, error) {
	if region == "" {
		region = "us-east-1"
	}
	client, issued, err := t.client(ctx, accountID, region)
	if err != nil {
		return "", err
	}

	now := t.now()
	start := ParseTimeInput(orDefault(startTime, "7 days ago"), now)

	out, err := client.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		StartTime: aws.Time(start),
		EndTime:   aws.Time(now),
		LookupAttributes: []types.LookupAttribute{{
			AttributeKey:   types.LookupAttributeKeyEventName,
			AttributeValue: aws.String("ConsoleLogin"),
		}},
		MaxResults: aws.Int32(clampResults(maxResults)),
	})
	if err != nil {
		return "", fmt.Errorf("looking up console logins: %w", err)
	}

	if len(out.Events) == 0 {
		return fmt.Sprintf("No console login events in account %s.", accountID), nil
	}
	return renderLoginReport(issued.Account.CorpName, accountID, start, now, out.Events), nil
}

// ErrorEvents returns recent API calls that failed. The trail service has
// no error filter, so a full page is fetched and filtered locally.
func (t *CloudTrail) ErrorEvents(ctx context.Context, accountID, startTime, region string, maxResults int) (string, error) {
	client, issued, err := t.client(ctx, accountID, region)
	if err != nil {
		return "", err
	}

	now := t.now()
	start := ParseTimeInput(orDefault(startTime, "1 day ago"), now)

	out, err := client.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(now),
		MaxResults: aws.Int32(lookupMax),
	})
	if err != nil {
		return "", fmt.Errorf("looking up error events: %w", err)
	}

	var failed []types.Event
	for _, ev := range out.Events {
		d := parseDetail(ev)
		if d.ErrorCode != "" || d.ErrorMessage != "" {
			failed = append(failed, ev)
		}
	}
	if maxResults > 0 && len(failed) > maxResults {
		failed = failed[:maxResults]
	}

	if len(failed) == 0 {
		return fmt.Sprintf("No error events in account %s since %s.", accountID, start.Format(time.RFC3339)), nil
	}
	return renderErrorReport(issued.Account.CorpName, accountID, region, start, now, failed), nil
}

// SecurityFindings is the classified result of a security sweep.
type SecurityFindings struct {
	Total      int
	Categories map[string][]types.Event
}

// AnalyzeSecurity sweeps recent management events and classifies the
// security-sensitive ones: IAM changes, security group and network edits,
// KMS key operations, trail tampering, bucket policy changes, root
// activity and failed calls.
func (t *CloudTrail) AnalyzeSecurity(ctx context.Context, accountID, startTime, region string) (string, error) {
	client, issued, err := t.client(ctx, accountID, region)
	if err != nil {
		return "", err
	}

	now := t.now()
	start := ParseTimeInput(orDefault(startTime, "7 days ago"), now)

	var events []types.Event
	var nextToken *string
	for page := 0; page < securityPageLimit; page++ {
		out, err := client.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
			StartTime:  aws.Time(start),
			EndTime:    aws.Time(now),
			MaxResults: aws.Int32(lookupMax),
			NextToken:  nextToken,
		})
		if err != nil {
			return "", fmt.Errorf("sweeping trail events: %w", err)
		}
		events = append(events, out.Events...)
		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	findings := classifyEvents(events)
	return renderSecurityReport(issued.Account.CorpName, accountID, region, start, now, findings), nil
}

func classifyEvents(events []types.Event) SecurityFindings {
	findings := SecurityFindings{
		Total:      len(events),
		Categories: make(map[string][]types.Event),
	}
	for _, ev := range events {
		name := aws.ToString(ev.EventName)
		d := parseDetail(ev)

		if d.UserIdentity.Type == "Root" {
			findings.Categories["root_activity"] = append(findings.Categories["root_activity"], ev)
		}
		if d.ErrorCode != "" {
			findings.Categories["error_events"] = append(findings.Categories["error_events"], ev)
		}
		for category, names := range securityEventNames {
			if containsString(names, name) {
				findings.Categories[category] = append(findings.Categories[category], ev)
				break
			}
		}
	}
	return findings
}

// SearchAccount finds a registered account by 12-digit id or by company
// name and describes it. Nothing is assumed; this is lookup only.
func (t *CloudTrail) SearchAccount(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)

	lookup := t.creds.SearchAccount
	if isAccountID(term) {
		lookup = t.creds.LookupAccount
	}
	rec, err := lookup(ctx, term)
	if err != nil {
		return fmt.Sprintf("No registered account matches %q.", term), nil
	}

	return fmt.Sprintf("Account found\n- Company: %s\n- Account ID: %s\n- Trust type: %s",
		rec.CorpName, rec.AccountID, rec.AssumeRoleType), nil
}

func isAccountID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
