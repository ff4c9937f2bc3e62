package main

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/voxchord/internal/app"
	"go.aimuz.me/voxchord/recording"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed build/tray.png
var trayIcon []byte

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	appService := app.New(version, logLevel)

	wailsApp := application.New(application.Options{
		Name:        "Voxchord",
		Description: "Push-to-talk dictation",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Keep running in the tray when the window is closed.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Voxchord",
		Width:  480,
		Height: 640,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Hide instead of destroy so the tray can reopen the window.
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})
	// Keys held while the window loses focus never report their release.
	mainWindow.OnWindowEvent(events.Common.WindowLostFocus, func(*application.WindowEvent) {
		appService.WindowBlurred()
	})

	appService.Init(wailsApp, mainWindow)

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetIcon(trayIcon)

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Show Window").OnClick(func(*application.Context) {
		appService.ShowWindow()
	})
	trayMenu.Add("Start Recording").OnClick(func(*application.Context) {
		go trayCommand("start recording", appService.StartRecording)
	})
	trayMenu.Add("Stop Recording").OnClick(func(*application.Context) {
		go trayCommand("stop recording", appService.StopRecording)
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			appService.Shutdown()
			wailsApp.Quit()
		})
	systemTray.SetMenu(trayMenu)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}

// trayCommand runs a controller command off the shell thread.
func trayCommand(name string, fn func() error) {
	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, recording.ErrAlreadyActive), errors.Is(err, context.DeadlineExceeded):
		slog.Warn(name, "error", err)
	default:
		slog.Error(name, "error", err)
	}
}
