package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func setupIssuanceDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "issuance.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLogAndVerify(t *testing.T) {
	db := setupIssuanceDB(t)

	logger, err := NewLoggerForInstance(db, "inst-test")
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	logger.Log(EventAccountLookup, "req-1", "123456789012", map[string]string{"corp": "lobehands"})
	logger.Log(EventBridgeHop, "req-1", "123456789012", map[string]string{"session": "bridge_session"})
	logger.Log(EventCredentialIssued, "req-1", "123456789012", map[string]string{"access_key": "ASIA****XAMPLE"})

	valid, count, err := Verify(db, "inst-test")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Error("expected valid chain")
	}
	if count != 3 {
		t.Errorf("expected 3 records, got %d", count)
	}
}

func TestChainTamperDetection(t *testing.T) {
	db := setupIssuanceDB(t)

	logger, err := NewLoggerForInstance(db, "inst-test")
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	logger.Log(EventAccountLookup, "", "111111111111", map[string]string{"a": "1"})
	logger.Log(EventLookupMiss, "", "222222222222", map[string]string{"b": "2"})
	logger.Log(EventCredentialIssued, "", "111111111111", map[string]string{"c": "3"})

	db.Exec("UPDATE issuance_log SET detail = '{\"tampered\":true}' WHERE id = 2")

	valid, _, err := Verify(db, "inst-test")
	if err == nil {
		t.Error("expected error from tampered chain")
	}
	if valid {
		t.Error("expected invalid chain after tampering")
	}
}

func TestEmptyChainIsValid(t *testing.T) {
	db := setupIssuanceDB(t)

	valid, count, err := Verify(db, "inst-test")
	if err != nil {
		t.Fatalf("verify empty: %v", err)
	}
	if !valid {
		t.Error("expected empty chain to be valid")
	}
	if count != 0 {
		t.Errorf("expected 0 records, got %d", count)
	}
}

func TestNewLoggerRecoversPreviousHash(t *testing.T) {
	db := setupIssuanceDB(t)

	logger1, _ := NewLoggerForInstance(db, "inst-test")
	logger1.Log(EventAccountLookup, "", "111111111111", map[string]string{"first": "event"})

	// Simulates a process restart resuming the same instance id.
	logger2, _ := NewLoggerForInstance(db, "inst-test")
	logger2.Log(EventCredentialIssued, "", "111111111111", map[string]string{"second": "event"})

	valid, count, err := Verify(db, "inst-test")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !valid {
		t.Error("expected valid chain after logger recovery")
	}
	if count != 2 {
		t.Errorf("expected 2 records, got %d", count)
	}
}

func TestFreshLoggerGetsUniqueInstanceID(t *testing.T) {
	db := setupIssuanceDB(t)

	a, err := NewLogger(db)
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	b, _ := NewLogger(db)
	if a.InstanceID() == "" || a.InstanceID() == b.InstanceID() {
		t.Error("each fresh logger must get its own instance id")
	}
}
