// Команда camera распознаёт коды в живом видео с камеры.
// Показывает окно предпросмотра, с флагом -headless или без окна печатает коды в консоль.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"code-scanner/config"
	"code-scanner/internal/capture"
	"code-scanner/internal/container"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/infrastructure/vision"
	"code-scanner/internal/logging"
)

const windowTitle = "Code Scanner"

type options struct {
	headless bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("camera", flag.ContinueOnError)
	fs.BoolVar(&opts.headless, "headless", false, "print codes to the console instead of opening a preview window")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// run возвращает ошибку вместо выхода, чтобы закрылись камера и контейнер
func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger("camera", logging.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appContainer, err := container.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer appContainer.Close()

	camera, err := vision.OpenCamera(cfg.CameraDevice)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer camera.Close()

	loop := capture.NewLoop(camera, appContainer.ScanService, cfg.CaptureInterval, logger.With("capture"))
	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer loop.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	if opts.headless {
		printFrames(loop.Frames(), quit, logger)
		return nil
	}

	preview, err := vision.NewPreview(windowTitle)
	if err != nil {
		logger.Info("preview window is unavailable, printing codes to console", "reason", err)
		printFrames(loop.Frames(), quit, logger)
		return nil
	}
	defer preview.Close()

	showFrames(loop, preview, quit, logger)
	return nil
}

// showFrames крутит окно предпросмотра в главной горутине до 'q', Esc или сигнала
func showFrames(loop *capture.Loop, preview *vision.Preview, quit <-chan os.Signal, logger *logging.Logger) {
	var current *entity.ScanResult
	for {
		select {
		case <-quit:
			return
		case f := <-loop.Frames():
			current = f.Result
		default:
		}

		if current == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		key, err := preview.Show(current.Image, 1)
		if err != nil {
			logger.Warn("failed to show frame", "error", err)
		}
		if key == 'q' || key == 27 {
			return
		}
	}
}

// printFrames печатает коды, когда набор в кадре меняется
func printFrames(frames <-chan capture.Frame, quit <-chan os.Signal, logger *logging.Logger) {
	var last string
	for {
		select {
		case <-quit:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if f.Result == nil {
				continue
			}
			labels := make([]string, 0, len(f.Result.Detections))
			for _, d := range f.Result.Detections {
				labels = append(labels, d.Label())
			}
			line := strings.Join(labels, "; ")
			if line == last {
				continue
			}
			last = line
			if line != "" {
				logger.Info("codes in frame", "seq", f.Seq, "codes", line)
			}
		}
	}
}
