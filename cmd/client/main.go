package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Lounge/internal/adapters/http"
	"github.com/dkeye/Lounge/internal/adapters/rtc"
	"github.com/dkeye/Lounge/internal/adapters/ws"
	"github.com/dkeye/Lounge/internal/app/store"
	"github.com/dkeye/Lounge/internal/config"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/lobby"
	"github.com/dkeye/Lounge/internal/presence"
	"github.com/dkeye/Lounge/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	bus := eventbus.New()
	dialer := ws.NewDialer(cfg.HandshakeTimeout, ws.Options{
		SendBuffer:   cfg.SendBuffer,
		WriteTimeout: cfg.WriteTimeout,
		PingPeriod:   cfg.PingPeriod,
		ReadLimit:    cfg.ReadLimit,
	})

	calls := rtc.NewCallManager(rtc.ConfigFromURLs(cfg.ICEServers))
	coord := presence.NewCoordinator(bus, calls)
	calls.SetSignaler(coord)
	calls.OnCallEnded(coord.CallEnded)

	if cfg.AudioIn != "" {
		mic, err := rtc.ListenLocalAudio(ctx, cfg.AudioIn)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.AudioIn).Msg("failed to open audio input")
		}
		calls.SetLocalTrack(mic)
	}
	if cfg.AudioOut != "" {
		speaker, err := rtc.NewUDPSink(cfg.AudioOut)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.AudioOut).Msg("failed to open audio output")
		}
		defer speaker.Close()
		calls.AddSink("speaker", speaker)
		log.Info().Str("addr", cfg.AudioOut).Msg("remote audio forwarded")
	}

	st := store.New(bus, store.DefaultChatLimit)

	client := session.NewClient(dialer, lobby.NewConnector(dialer, cfg.LobbyURL), bus, coord, session.Options{
		ServerURL:        cfg.ServerURL,
		PublicRoomType:   cfg.PublicRoomType,
		PlayerName:       cfg.PlayerName,
		HandshakeTimeout: cfg.HandshakeTimeout,
		SendLimit:        cfg.SendLimit,
		SendWindow:       cfg.SendWindow,
	})

	userID := domain.UserID(cfg.UserID)
	if userID == "" {
		userID = domain.UserID(uuid.NewString())
	}

	go func() {
		if _, err := client.EnterLobby(ctx); err != nil {
			log.Warn().Err(err).Msg("lobby unavailable")
		}
		rs, err := client.JoinPublic(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("join public room failed")
			return
		}
		log.Info().Str("sid", string(rs.SessionID())).Str("room_id", string(rs.RoomID())).Msg("joined public room")
	}()

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Sessions: router.FromClient(client),
		Store:    st,
		Peers:    coord,
		Audio:    calls,
		Bus:      bus,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.BridgePort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Lounge bridge started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("bridge error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	client.Leave()
	coord.Stop()
	calls.CloseAll()
	st.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Bridge forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}
