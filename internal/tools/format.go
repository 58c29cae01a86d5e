package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
)

const reportTimeLayout = "2006-01-02 15:04"

func eventTime(ev types.Event, layout string) string {
	if ev.EventTime == nil {
		return "N/A"
	}
	return ev.EventTime.UTC().Format(layout)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// formatEvent renders one trail event for chat output.
func formatEvent(ev types.Event) string {
	d := parseDetail(ev)

	lines := []string{
		"Time: " + eventTime(ev, time.RFC3339),
		"Event: " + orNA(aws.ToString(ev.EventName)),
		"User: " + orNA(aws.ToString(ev.Username)),
		"Source: " + orNA(d.EventSource),
		"Region: " + orNA(d.AWSRegion),
		"IP: " + orNA(d.SourceIPAddress),
	}
	if d.ErrorCode != "" {
		lines = append(lines, "Error code: "+d.ErrorCode)
	}
	if d.ErrorMessage != "" {
		lines = append(lines, "Error message: "+d.ErrorMessage)
	}
	if len(ev.Resources) > 0 {
		var rs []string
		for i, r := range ev.Resources {
			if i == 3 {
				break
			}
			rs = append(rs, fmt.Sprintf("%s: %s", orNA(aws.ToString(r.ResourceType)), orNA(aws.ToString(r.ResourceName))))
		}
		lines = append(lines, "Resources: "+strings.Join(rs, ", "))
	}
	return strings.Join(lines, "\n")
}

func reportHeader(title, corpName, accountID, region string, start, end time.Time) []string {
	lines := []string{
		title,
		fmt.Sprintf("Account: %s (%s)", orNA(corpName), accountID),
	}
	if region != "" {
		lines = append(lines, "Region: "+region)
	}
	lines = append(lines,
		fmt.Sprintf("Window: %s ~ %s UTC", start.Format(reportTimeLayout), end.Format(reportTimeLayout)),
		"",
	)
	return lines
}

func renderLookupReport(corpName, accountID, region string, start, end time.Time, events []types.Event) string {
	lines := reportHeader("CloudTrail events", corpName, accountID, region, start, end)
	lines = append(lines, fmt.Sprintf("Events: %d", len(events)), "")
	for i, ev := range events {
		lines = append(lines, fmt.Sprintf("[%d]", i+1), formatEvent(ev), "")
	}
	return strings.Join(lines, "\n")
}

func renderLoginReport(corpName, accountID string, start, end time.Time, events []types.Event) string {
	lines := reportHeader("Console login events", corpName, accountID, "", start, end)
	lines = append(lines, fmt.Sprintf("Logins: %d", len(events)), "")
	for i, ev := range events {
		d := parseDetail(ev)
		lines = append(lines,
			fmt.Sprintf("[%d] %s", i+1, eventTime(ev, "2006-01-02 15:04:05")),
			"  User: "+orNA(aws.ToString(ev.Username)),
			"  IP: "+orNA(d.SourceIPAddress),
			"  Result: "+orNA(d.ResponseElements.ConsoleLogin),
			"  MFA: "+orNA(d.AdditionalEventData.MFAUsed),
		)
		if d.ErrorCode != "" {
			lines = append(lines, "  Error: "+d.ErrorCode)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func renderErrorReport(corpName, accountID, region string, start, end time.Time, events []types.Event) string {
	lines := reportHeader("Error events", corpName, accountID, region, start, end)
	lines = append(lines, fmt.Sprintf("Errors: %d", len(events)), "")
	for i, ev := range events {
		d := parseDetail(ev)
		msg := d.ErrorMessage
		if len(msg) > 100 {
			msg = msg[:100] + "..."
		}
		lines = append(lines,
			fmt.Sprintf("[%d] %s", i+1, eventTime(ev, "2006-01-02 15:04:05")),
			"  Event: "+orNA(aws.ToString(ev.EventName)),
			"  User: "+orNA(aws.ToString(ev.Username)),
			"  Service: "+orNA(d.EventSource),
			"  Error code: "+orNA(d.ErrorCode),
			"  Error message: "+orNA(msg),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// securityCategoryOrder fixes report ordering; maps iterate randomly.
var securityCategoryOrder = []struct {
	key   string
	label string
}{
	{"root_activity", "Root account activity"},
	{"iam", "IAM changes"},
	{"security_group", "Security group changes"},
	{"network", "Network changes"},
	{"kms", "KMS changes"},
	{"cloudtrail", "CloudTrail changes"},
	{"s3", "S3 policy changes"},
	{"error_events", "Error events"},
}

func renderSecurityReport(corpName, accountID, region string, start, end time.Time, findings SecurityFindings) string {
	lines := reportHeader("Security event analysis", corpName, accountID, region, start, end)
	lines = append(lines, fmt.Sprintf("Events analyzed: %d", findings.Total), "", "Summary by category:")

	flagged := 0
	for _, cat := range securityCategoryOrder {
		count := len(findings.Categories[cat.key])
		flagged += count
		marker := ""
		if count > 0 && (cat.key == "root_activity" || cat.key == "cloudtrail") {
			marker = " [critical]"
		}
		lines = append(lines, fmt.Sprintf("- %s: %d%s", cat.label, count, marker))
	}
	lines = append(lines, "")

	if events := findings.Categories["root_activity"]; len(events) > 0 {
		lines = append(lines, "Root account activity detected:")
		for i, ev := range events {
			if i == 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: %s", eventTime(ev, reportTimeLayout), orNA(aws.ToString(ev.EventName))))
		}
		lines = append(lines, "")
	}
	if events := findings.Categories["iam"]; len(events) > 0 {
		lines = append(lines, "IAM change events:")
		for i, ev := range events {
			if i == 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: %s (by %s)",
				eventTime(ev, reportTimeLayout), orNA(aws.ToString(ev.EventName)), orNA(aws.ToString(ev.Username))))
		}
		lines = append(lines, "")
	}
	if events := findings.Categories["cloudtrail"]; len(events) > 0 {
		lines = append(lines, "Trail logging changes detected:")
		for _, ev := range events {
			lines = append(lines, fmt.Sprintf("  - %s: %s (by %s)",
				eventTime(ev, reportTimeLayout), orNA(aws.ToString(ev.EventName)), orNA(aws.ToString(ev.Username))))
		}
		lines = append(lines, "")
	}

	if flagged == 0 {
		lines = append(lines, "No notable security events in the analysis window.")
	}
	return strings.Join(lines, "\n")
}
