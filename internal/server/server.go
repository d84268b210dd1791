package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"agentgate/internal/agent"
	"agentgate/internal/allowlist"
	"agentgate/internal/assets"
	"agentgate/internal/auth"
	"agentgate/internal/config"
	"agentgate/internal/dispatch"
	"agentgate/internal/github"
	httpserver "agentgate/internal/http"
	"agentgate/internal/mailer"
	"agentgate/internal/ws"
)

type Server struct {
	httpServer *http.Server
}

func New(cfg *config.Config) (*Server, error) {
	codec := auth.NewCodec(cfg.SessionSecret)
	policy := allowlist.NewPolicy(
		cfg.AllowedGithubUsers,
		cfg.AllowedGithubOrg,
		cfg.AllowedEmails,
		cfg.AllowedDomains,
	)

	var extraEnv []string
	if cfg.AgentAuthToken != "" {
		extraEnv = append(extraEnv, "CLAUDE_CODE_OAUTH_TOKEN="+cfg.AgentAuthToken)
	}
	runner := agent.NewCLIRunner(cfg.AgentBinary, extraEnv)

	dispatcher := dispatch.New(runner, dispatch.Config{
		UpstreamConfigured: cfg.AgentAuthToken != "",
		DefaultModel:       cfg.DefaultModel,
		AllowedModels:      cfg.AllowedModels,
	})

	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(codec, dispatcher, registry, cfg.SessionCookie)

	var sender mailer.Sender
	smtpSender := mailer.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	if smtpSender.Configured() {
		sender = smtpSender
	}

	githubClient := github.NewClient(cfg.GithubClientID, cfg.GithubClientSecret)

	router := httpserver.NewRouter()
	httpserver.RegisterRoutes(router, httpserver.Dependencies{
		Codec:         codec,
		Policy:        policy,
		Dispatcher:    dispatcher,
		Github:        githubClient,
		Mail:          sender,
		APIKey:        cfg.APIKey,
		SessionCookie: cfg.SessionCookie,
		SessionTTL:    cfg.SessionTTL,
		LoginTTL:      cfg.LoginTTL,
		PublicURL:     cfg.PublicURL,
		CorsOrigins:   cfg.CorsOrigins,
		WSHandler:     wsHandler,
	})

	if assets.HasEmbeddedAssets() {
		router.SetFallback(assets.Handler())
		log.Println("[Server] Serving embedded web assets")
	}

	logStartupSummary(cfg, githubClient, sender)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: srv}, nil
}

// logStartupSummary reports which optional features are active. Only
// presence is logged, never credential values.
func logStartupSummary(cfg *config.Config, githubClient *github.Client, sender mailer.Sender) {
	log.Printf("[Server] Listening on port %d (public URL %s)", cfg.ListenPort, cfg.PublicURL)
	log.Printf("[Server] Upstream agent configured: %t", cfg.AgentAuthToken != "")
	log.Printf("[Server] Query API key configured: %t", cfg.APIKey != "")
	log.Printf("[Server] GitHub sign-in configured: %t", githubClient.Configured())
	log.Printf("[Server] Email sign-in configured: %t", sender != nil)
	if len(cfg.AllowedGithubUsers) == 0 && cfg.AllowedGithubOrg == "" &&
		len(cfg.AllowedEmails) == 0 && len(cfg.AllowedDomains) == 0 {
		log.Println("[Server] No allowlist configured: every authenticated identity is accepted")
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
