package mysql

import "testing"

func TestParseDSNBasic(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/appdb?collation=utf8mb4_general_ci&tls=true")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.User != "root" || cfg.Passwd != "secret" || cfg.Net != "tcp" || cfg.Addr != "127.0.0.1:3306" || cfg.DBName != "appdb" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Collation != "utf8mb4_general_ci" || !cfg.Secure {
		t.Fatalf("got collation=%q secure=%v", cfg.Collation, cfg.Secure)
	}
}

func TestParseDSNNoCredentials(t *testing.T) {
	cfg, err := ParseDSN("/appdb")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cfg.DBName != "appdb" || cfg.Addr != "127.0.0.1:3306" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestParseDSNMissingSlash(t *testing.T) {
	if _, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)"); err == nil {
		t.Fatal("expected errInvalidDSNNoSlash")
	}
}

func TestFormatDSNRoundTrip(t *testing.T) {
	cfg := &Config{User: "root", Passwd: "secret", Net: "tcp", Addr: "db:3306", DBName: "appdb", Collation: "utf8mb4_general_ci"}
	dsn := cfg.FormatDSN()
	reparsed, err := ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if reparsed.User != cfg.User || reparsed.Addr != cfg.Addr || reparsed.DBName != cfg.DBName || reparsed.Collation != cfg.Collation {
		t.Fatalf("round trip mismatch: got %+v, want %+v", reparsed, cfg)
	}
}
