package goIdem

import (
	"net/http"
	"testing"
)

func TestBuildRequiresStore(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without redis or store")
	}
}

func TestBuildValidatesConfig(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := DefaultConfig()
	cfg.TTL = 0
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildNormalizesProtectedMethods(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := DefaultConfig()
	cfg.ProtectedMethods = []string{" post ", "patch"}
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.Protects(http.MethodPost) || !engine.Protects("Patch") {
		t.Fatal("expected POST and PATCH to be protected")
	}
	if engine.Protects(http.MethodPut) || engine.Protects(http.MethodGet) {
		t.Fatal("expected PUT and GET to bypass")
	}
}

func TestBuilderConfigIsCopied(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := DefaultConfig()
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg.ProtectedMethods[0] = http.MethodGet
	got := engine.Config()
	if got.ProtectedMethods[0] != http.MethodPost {
		t.Fatalf("engine config aliased caller slice: %v", got.ProtectedMethods)
	}
}
