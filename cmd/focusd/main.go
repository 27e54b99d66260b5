package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/focusd/focusd/internal/audio"
	"github.com/focusd/focusd/internal/capture"
	"github.com/focusd/focusd/internal/coach"
	"github.com/focusd/focusd/internal/config"
	"github.com/focusd/focusd/internal/countdown"
	"github.com/focusd/focusd/internal/dialogue"
	"github.com/focusd/focusd/internal/gdrive"
	"github.com/focusd/focusd/internal/nudge"
	"github.com/focusd/focusd/internal/recorder"
	"github.com/focusd/focusd/internal/server"
	"github.com/focusd/focusd/internal/storage"
)

// trackedTimer wraps the countdown so every armed run leaves a row in the
// study log. Re-arming finishes the previous run as incomplete.
type trackedTimer struct {
	timer *countdown.Timer
	store *storage.SQLiteStore

	mu    sync.Mutex
	runID string
}

func (t *trackedTimer) Start(raw string) error {
	if err := t.timer.Start(raw); err != nil {
		return err
	}

	t.mu.Lock()
	previous := t.runID
	t.runID = uuid.NewString()
	runID := t.runID
	t.mu.Unlock()

	now := time.Now().UTC()
	if previous != "" {
		_ = t.store.FinishTimerRun(previous, now, false)
	}

	label := countdown.FormatClock(time.Duration(t.timer.Remaining()) * time.Second)
	if err := t.store.StartTimerRun(runID, now, label); err != nil {
		log.Printf("warning: record timer run: %v", err)
	}
	return nil
}

func (t *trackedTimer) finish(completed bool) {
	t.mu.Lock()
	runID := t.runID
	t.runID = ""
	t.mu.Unlock()

	if runID == "" {
		return
	}
	if err := t.store.FinishTimerRun(runID, time.Now().UTC(), completed); err != nil {
		log.Printf("warning: finish timer run: %v", err)
	}
}

// pruneClips removes saved utterance and reply audio older than the cutoff.
func pruneClips(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("prune clips: %v", err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				log.Printf("prune clips: %v", err)
			}
		}
	}
}

func main() {
	log.Println("focusd: starting")

	if err := godotenv.Load(); err == nil {
		log.Println("focusd: loaded .env")
	}

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub()

	var coachOpts []coach.Option
	if cfg.CoachAPIKey != "" {
		coachOpts = append(coachOpts, coach.WithAPIKey(cfg.CoachAPIKey))
	}
	coachClient := coach.New(cfg.CoachBaseURL, coachOpts...)

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := coachClient.Health(healthCtx); err != nil {
		log.Printf("warning: coach service unreachable at %s: %v", cfg.CoachBaseURL, err)
	}
	healthCancel()

	if err := portaudio.Initialize(); err != nil {
		log.Printf("warning: portaudio init failed, recording disabled: %v", err)
	} else {
		defer func() { _ = portaudio.Terminate() }()
	}

	player := audio.NewPlayer(os.TempDir())

	var manager *dialogue.Manager

	timer := countdown.New(
		hub.BroadcastTimerTick,
		nil, // set below, after the tracker exists
	)
	tracker := &trackedTimer{timer: timer, store: store}

	rec := recorder.New(
		recorder.Config{
			SampleRate:      cfg.SampleRate,
			ProbeInterval:   cfg.ParsedProbeInterval(),
			SpeechThreshold: cfg.SpeechThreshold,
			Silence:         cfg.ParsedSilenceStop(),
			MinDuration:     cfg.ParsedMinRecording(),
			MaxDuration:     cfg.ParsedMaxRecording(),
			MinBytes:        cfg.MinRecordingBytes,
			ToggleDebounce:  cfg.ParsedToggleDebounce(),
		},
		func(sampleRate, framesPerBuffer int) (recorder.Source, error) {
			return audio.NewMic(sampleRate, framesPerBuffer)
		},
		func(clip recorder.Clip) {
			manager.SubmitClip(clip)
		},
	)
	rec.OnStateChange(func(st recorder.State) {
		// The listener runs under the recorder lock; broadcast outside it.
		go hub.BroadcastRecorderState(st.String(), rec.Enabled())
	})
	rec.OnNotice(hub.BroadcastNotice)

	coordinator := nudge.New(cfg.ParsedCooldownWindow(), func(source, activity, message string) {
		hub.BroadcastNudge(source, activity, message)
		if err := store.AppendNudge(time.Now().UTC(), source, activity, message); err != nil {
			log.Printf("warning: record nudge: %v", err)
		}
		go manager.SubmitNudge(message)
	})

	scheduler := capture.NewScheduler(
		coachClient,
		capture.NewGrabber,
		cfg.ParsedScreenInterval(),
		cfg.ParsedCameraInterval(),
		capture.OnVerdict(func(kind capture.Kind, activity string) {
			coordinator.Consider(string(kind), activity)
		}),
		capture.OnStateChange(func(kind capture.Kind, active bool) {
			hub.BroadcastCaptureState(string(kind), active)
		}),
		capture.OnNotice(hub.BroadcastNotice),
	)

	manager = dialogue.NewManager(
		dialogue.Config{
			RevealInterval: cfg.ParsedRevealInterval(),
			ClearGrace:     cfg.ParsedClearGrace(),
			ResumeDelay:    cfg.ParsedResumeDelay(),
			AudioDir:       cfg.AudioDir,
		},
		store, coachClient, rec, player, tracker, hub,
	)

	timer.SetOnDone(func(label string) {
		tracker.finish(true)
		hub.BroadcastTimerDone(label)
		manager.SubmitTimerDone(label)
	})

	handler := server.Handler(hub, store, server.ControlHooks{
		SubmitChat:      manager.SubmitText,
		ToggleRecording: rec.Toggle,
		StartCapture:    scheduler.Start,
		StopCapture:     scheduler.Stop,
		Reset:           manager.Reset,
		Status: func() map[string]any {
			return map[string]any{
				"recording_enabled": rec.Enabled(),
				"recorder_state":    rec.State().String(),
				"capture": map[string]bool{
					string(capture.KindScreen): scheduler.Active(capture.KindScreen),
					string(capture.KindCamera): scheduler.Active(capture.KindCamera),
				},
				"timer_remaining": timer.Remaining(),
			}
		},
		Warnings: func() []string { return warnings },
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		log.Printf("focusd: control API on http://%s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	jobs := cron.New()
	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			if _, err := jobs.AddFunc("@every 5m", func() {
				date := time.Now().UTC().Format("2006-01-02")
				if err := syncer.Sync(cfg.DBPath, date); err != nil {
					log.Printf("gdrive sync error: %v", err)
				}
			}); err != nil {
				log.Printf("warning: schedule gdrive sync: %v", err)
			}
		}
	}
	if cfg.RetentionDays > 0 {
		if _, err := jobs.AddFunc("@daily", func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
			removed, err := store.PruneBefore(cutoff)
			if err != nil {
				log.Printf("prune error: %v", err)
				return
			}
			if removed > 0 {
				log.Printf("focusd: pruned %d turns older than %s", removed, cutoff.Format("2006-01-02"))
			}
			pruneClips(cfg.AudioDir, cutoff)
		}); err != nil {
			log.Printf("warning: schedule pruning: %v", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	go func() {
		welcomeCtx, welcomeCancel := context.WithTimeout(ctx, 30*time.Second)
		defer welcomeCancel()
		if err := manager.SubmitWelcome(welcomeCtx); err != nil {
			log.Printf("warning: welcome turn failed: %v", err)
		}
	}()

	for _, kind := range cfg.CaptureAutostart {
		if err := scheduler.Start(capture.Kind(kind)); err != nil {
			log.Printf("warning: autostart %s capture: %v", kind, err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("focusd: shutting down")
	cancel()

	scheduler.StopAll()
	rec.Stop()
	timer.Stop()
	tracker.finish(false)
	player.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}
