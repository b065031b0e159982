// The authsdk-demo command exercises the full session lifecycle against a
// backend: login, an authenticated probe, a forced refresh, an OTP login,
// and logout. With no -backend flag it starts a built-in stub backend that
// mints real JWTs, so the demo runs self-contained.
//
// Run:
//
//	go run ./cmd/authsdk-demo
//	go run ./cmd/authsdk-demo -backend https://api.example.com -email you@example.com -password secret
//
// With -redis-addr (or a local miniredis when the flag is empty and -redis is
// set) credentials persist in Redis instead of process memory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsdk"
)

func main() {
	var (
		backend   = flag.String("backend", "", "backend base URL; empty starts a built-in stub")
		email     = flag.String("email", "alice@example.com", "account email")
		password  = flag.String("password", "correct-horse-battery", "account password")
		useRedis  = flag.Bool("redis", false, "persist credentials in Redis (miniredis unless -redis-addr is set)")
		redisAddr = flag.String("redis-addr", "", "redis address for credential persistence")
		otpDemo   = flag.Bool("otp", false, "run the OTP login flow instead of password login")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	baseURL := *backend
	if baseURL == "" {
		stub, stop, err := startStubBackend(*email, *password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stub backend: %v\n", err)
			os.Exit(1)
		}
		defer stop()
		baseURL = stub
		fmt.Printf("stub backend at %s\n", baseURL)
	}

	cfg, err := authsdk.LoadConfig("")
	if err != nil {
		// No usable environment config; Build applies the defaults.
		cfg = authsdk.Config{}
	}
	cfg.API.BaseURL = baseURL
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true

	builder := authsdk.New().
		WithConfig(cfg).
		WithLogger(log).
		WithAuditSink(authsdk.NewJSONWriterSink(os.Stdout))

	if *useRedis || *redisAddr != "" {
		addr := *redisAddr
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				fmt.Fprintf(os.Stderr, "miniredis: %v\n", err)
				os.Exit(1)
			}
			defer mr.Close()
			addr = mr.Addr()
			fmt.Printf("credential store on miniredis at %s\n", addr)
		}
		builder.WithRedis(redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}}))
	}

	client, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	events, err := client.Events(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}
	go func() {
		for ev := range events {
			fmt.Printf("event: %s email=%s reason=%q\n", ev.Type, ev.Email, ev.Reason)
		}
	}()

	if *otpDemo {
		runOTPFlow(ctx, client, *email)
	} else {
		runPasswordFlow(ctx, client, *email, *password)
	}

	snap := client.Metrics()
	fmt.Printf("logins=%d refreshes=%d retries=%d logouts=%d\n",
		snap.Counters[authsdk.MetricLoginSuccess],
		snap.Counters[authsdk.MetricRefreshSuccess],
		snap.Counters[authsdk.MetricRequestRetried],
		snap.Counters[authsdk.MetricLogout])
}

func runPasswordFlow(ctx context.Context, client *authsdk.Client, email, password string) {
	user, err := client.Login(ctx, email, password)
	if err != nil {
		fail("login", err)
	}
	fmt.Printf("logged in as %s (%s)\n", user.Name, user.Email)

	if err := client.Refresh(ctx); err != nil {
		fail("refresh", err)
	}
	fmt.Println("credentials refreshed")

	st, err := client.Init(ctx)
	if err != nil {
		fail("init", err)
	}
	fmt.Printf("session restored: authenticated=%v\n", st.IsAuthenticated)

	if err := client.Logout(ctx); err != nil {
		fail("logout", err)
	}
	fmt.Println("logged out")
}

func runOTPFlow(ctx context.Context, client *authsdk.Client, email string) {
	if err := client.SendLoginOTP(ctx, email); err != nil {
		fail("send otp", err)
	}
	fmt.Printf("OTP sent to %s (stub code is 123456), attempts left: %d\n", email, client.OTPRemainingAttempts())

	user, err := client.VerifyLoginOTP(ctx, "123456")
	if err != nil {
		fail("verify otp", err)
	}
	fmt.Printf("logged in via OTP as %s\n", user.Email)

	if err := client.Logout(ctx); err != nil {
		fail("logout", err)
	}
	fmt.Println("logged out")
}

func fail(op string, err error) {
	cls := authsdk.Classify(err)
	fmt.Fprintf(os.Stderr, "%s failed: %s (kind=%s recoverable=%v)\n", op, cls.Message, cls.Kind, cls.Recoverable)
	os.Exit(1)
}

/* ==========================================================================
   Stub backend
   ========================================================================== */

var stubSigningKey = []byte("authsdk-demo-signing-key")

type stubEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func startStubBackend(email, password string) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != email || req.Password != password {
			writeStub(w, http.StatusUnauthorized, stubEnvelope{Message: "Invalid credentials"})
			return
		}
		writeStub(w, http.StatusOK, stubEnvelope{Success: true, Data: sessionData(email)})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeStub(w, http.StatusUnauthorized, stubEnvelope{Message: "Invalid refresh token"})
			return
		}
		writeStub(w, http.StatusOK, stubEnvelope{Success: true, Data: sessionData(email)})
	})
	mux.HandleFunc("GET /auth/init", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeStub(w, http.StatusUnauthorized, stubEnvelope{Message: "Missing token"})
			return
		}
		writeStub(w, http.StatusOK, stubEnvelope{Success: true})
	})
	mux.HandleFunc("POST /auth/login/request-otp", func(w http.ResponseWriter, r *http.Request) {
		writeStub(w, http.StatusOK, stubEnvelope{Success: true, Message: "OTP sent"})
	})
	mux.HandleFunc("POST /auth/login/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			OTP   string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OTP != "123456" {
			writeStub(w, http.StatusUnauthorized, stubEnvelope{Message: "Invalid OTP"})
			return
		}
		writeStub(w, http.StatusOK, stubEnvelope{Success: true, Data: sessionData(req.Email)})
	})

	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return "http://" + ln.Addr().String(), stop, nil
}

func sessionData(email string) map[string]any {
	return map[string]any{
		"token":        mintToken(email, 15*time.Minute),
		"refreshToken": mintToken(email, 7*24*time.Hour),
		"user": map[string]string{
			"id":    "user-1",
			"email": email,
			"name":  "Demo User",
		},
	}
}

func mintToken(email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": email,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(stubSigningKey)
	if err != nil {
		return ""
	}
	return signed
}

func writeStub(w http.ResponseWriter, status int, body stubEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
