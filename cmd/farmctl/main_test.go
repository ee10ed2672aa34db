package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSignTokenClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	signed, err := signToken([]byte(testKey), tokenOptions{
		Subject:  "0x00000000000000000000000000000000000000a1",
		Scope:    "farm:admin",
		Issuer:   "farm-auth",
		Audience: "farmd",
		TTL:      time.Minute,
	}, now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testKey), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims["sub"] != common.HexToAddress("0xa1").Hex() {
		t.Fatalf("unexpected subject %v", claims["sub"])
	}
	if claims["iss"] != "farm-auth" || claims["aud"] != "farmd" || claims["scope"] != "farm:admin" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != now.Add(time.Minute).Unix() {
		t.Fatalf("unexpected exp %v", claims["exp"])
	}
}

func TestSignTokenRejectsBadInput(t *testing.T) {
	if _, err := signToken([]byte(testKey), tokenOptions{Subject: "nobody", TTL: time.Minute}, time.Now()); err == nil {
		t.Fatalf("expected subject error")
	}
	if _, err := signToken([]byte(testKey), tokenOptions{Subject: "0x00000000000000000000000000000000000000a1"}, time.Now()); err == nil {
		t.Fatalf("expected ttl error")
	}
}

func TestRunTokenUsesEnvironmentSecret(t *testing.T) {
	t.Setenv("FARMCTL_TEST_KEY", testKey)
	var out bytes.Buffer
	err := runToken([]string{"-secret-env", "FARMCTL_TEST_KEY", "-subject", "0x00000000000000000000000000000000000000a1"}, &out)
	if err != nil {
		t.Fatalf("run token: %v", err)
	}
	if strings.Count(strings.TrimSpace(out.String()), ".") != 2 {
		t.Fatalf("output is not a jwt: %q", out.String())
	}
}

func TestRunAddressPrintsBothForms(t *testing.T) {
	var out bytes.Buffer
	if err := runAddress([]string{"0x00000000000000000000000000000000000000c1"}, &out); err != nil {
		t.Fatalf("run address: %v", err)
	}
	if !strings.Contains(out.String(), "bech32: farm1") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
