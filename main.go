package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tsutmb/hostel-bot/bot"
	"github.com/tsutmb/hostel-bot/config"
	"github.com/tsutmb/hostel-bot/conversation"
	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/server"
	"github.com/tsutmb/hostel-bot/sheets"
	"github.com/tsutmb/hostel-bot/telemetry"
	"github.com/tsutmb/hostel-bot/vkapi"
)

var version = "dev"

func setupLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	_ = godotenv.Load()
	setupLogger()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("hostel-bot", version)
	if err != nil {
		slog.Warn("tracing disabled", slog.Any("err", err))
	} else {
		defer shutdownTracing()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := sheets.New(ctx, cfg.SheetsCredentialsFile, cfg.SpreadsheetID)
	if err != nil {
		slog.Error("failed to init sheets client", slog.Any("err", err))
		os.Exit(1)
	}
	store := roster.NewStore(sheetsClient, cfg.SheetName, cfg.RowStart, cfg.RowEnd)

	vk := vkapi.New(cfg.VKToken)
	state := conversation.NewState(vk, cfg.ConversationID)
	throttle := conversation.NewThrottle(cfg.JoinNoticeOffset)

	groupID, groupName, err := vk.GetGroup(ctx)
	if err != nil {
		slog.Error("failed to resolve bot group", slog.Any("err", err))
		os.Exit(1)
	}
	title, err := vk.GetChatTitle(ctx, cfg.ConversationID)
	if err != nil {
		slog.Warn("failed to resolve chat title", slog.Any("err", err))
	}
	slog.Info("starting hostel bot",
		slog.String("version", version),
		slog.String("group", groupName),
		slog.Int64("group_id", groupID),
		slog.String("conversation", title))

	if _, err := store.Refresh(ctx); err != nil {
		slog.Error("initial roster load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := state.Refresh(ctx); err != nil {
		slog.Error("initial membership load failed", slog.Any("err", err))
		os.Exit(1)
	}
	admins, users, bots := state.Counts()
	slog.Info("conversation loaded",
		slog.Int("admins", admins), slog.Int("users", users), slog.Int("bots", bots),
		slog.Int("roster", len(store.Snapshot().Records)))

	dispatcher := bot.NewDispatcher(vk, state, store, throttle, cfg.ConversationID, groupID)

	go bot.StartRefreshJob(ctx, store, state, cfg.RefreshInterval)

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, store, state, dispatcher, httpAddr); err != nil {
			slog.Error("http server failed", slog.Any("err", err))
		}
	}()

	if err := vk.Run(ctx, dispatcher.HandleEvent); err != nil && ctx.Err() == nil {
		slog.Error("long poll loop failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
