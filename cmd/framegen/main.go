package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ivlev/cleo/internal/config"
	"github.com/ivlev/cleo/internal/export"
	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/renderer"
	"github.com/ivlev/cleo/internal/source"
	"github.com/ivlev/cleo/internal/system"
	"github.com/ivlev/cleo/internal/video"
)

func main() {
	system.InitResourceLimits(4096)

	configPath := flag.String("config", "", "Path to cleo.yaml (export and animation sections)")
	inputPtr := flag.String("input", "", "PDF, image folder or video (default: newest file in input/)")
	outPtr := flag.String("out", "", "Frames root directory (default: server.frames_dir)")
	namePtr := flag.String("name", "", "Animation name (default: animation.name)")
	startPtr := flag.Int("start", -1, "Number of the first frame (default: animation.start)")
	extPtr := flag.String("ext", "", "Frame format: jpg or png (default: export.ext)")
	widthPtr := flag.Int("width", -1, "Frame width, 0 keeps the source size")
	heightPtr := flag.Int("height", -1, "Frame height, 0 keeps the source size")
	dpiPtr := flag.Int("dpi", 0, "PDF render DPI")
	workersPtr := flag.Int("workers", 0, "Parallel workers")
	qualityPtr := flag.Int("quality", 0, "JPEG quality 1-100")
	fpsPtr := flag.Float64("fps", 0, "Video sampling rate, 0 keeps every frame")
	scalerPtr := flag.String("scaler", "catmullrom", "Resampling: nearest, bilinear, catmullrom")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	exp := cfg.Export
	anim := cfg.Animation
	if *outPtr == "" {
		*outPtr = cfg.Server.FramesDir
	}
	if *namePtr != "" {
		anim.Name = *namePtr
	}
	if *startPtr >= 0 {
		anim.Start = *startPtr
	}
	if *extPtr != "" {
		exp.Ext = strings.TrimPrefix(strings.ToLower(*extPtr), ".")
	}
	if *widthPtr >= 0 {
		exp.Width = *widthPtr
	}
	if *heightPtr >= 0 {
		exp.Height = *heightPtr
	}
	if *dpiPtr > 0 {
		exp.DPI = *dpiPtr
	}
	if *workersPtr > 0 {
		exp.Workers = *workersPtr
	}
	if *qualityPtr > 0 {
		exp.Quality = *qualityPtr
	}

	inputPath := *inputPtr
	if inputPath == "" {
		exts := append(append(append([]string{}, system.PDFExtensions...), system.VideoExtensions...), system.ImageExtensions...)
		latest, err := system.FindLatestInput("input", exts)
		if err != nil {
			log.Fatalf("[-] Error: %v. Put a PDF, video or images into input/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Selected input: %s\n", inputPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("--- [FRAMEGEN] ---")
	fmt.Printf("[*] Input: %s\n", inputPath)
	fmt.Printf("[*] Output: %s\n", filepath.Join(*outPtr, anim.Name))
	fmt.Printf("[*] Size: %dx%d | Format: %s | Workers: %d\n", exp.Width, exp.Height, exp.Ext, exp.Workers)
	fmt.Println("------------------")

	if system.HasExtension(inputPath, system.VideoExtensions) {
		extractVideo(ctx, inputPath, *outPtr, anim, exp, *fpsPtr)
		return
	}

	src, err := source.Open(inputPath, exp.DPI)
	if err != nil {
		log.Fatalf("[-] Source error: %v", err)
	}
	defer src.Close()

	if src.FrameCount() == 0 {
		log.Fatalf("[-] Error: the source has no pages or images")
	}

	project := export.NewProject(src, export.Options{
		Name:    anim.Name,
		OutRoot: *outPtr,
		Width:   exp.Width,
		Height:  exp.Height,
		Start:   anim.Start,
		Ext:     exp.Ext,
		Quality: exp.Quality,
		Workers: exp.Workers,
		Scaler:  renderer.ScalerByName(*scalerPtr),
		OnFrame: func(done, total int) {
			fmt.Printf("[>] Ready: %d/%d\n", done, total)
		},
	})
	report, err := project.Run(ctx)
	if err != nil {
		log.Fatalf("[-] Export error: %v", err)
	}

	fmt.Printf("[+++] Done! %d frames in %s (%.2fs)\n", report.Manifest.Frames, report.Dir, report.Elapsed.Seconds())
}

func extractVideo(ctx context.Context, input, outRoot string, anim config.AnimationConfig, exp config.ExportConfig, fps float64) {
	ex := video.NewExtractor()
	if n, err := ex.CountFrames(ctx, input); err == nil {
		fmt.Printf("[*] Source frames: %d\n", n)
	} else {
		log.Printf("[!] Could not count source frames: %v", err)
	}

	dir := filepath.Join(outRoot, anim.Name)
	count, err := ex.Extract(ctx, video.ExtractParams{
		Input:   input,
		OutDir:  dir,
		Width:   exp.Width,
		Height:  exp.Height,
		FPS:     fps,
		Start:   anim.Start,
		Ext:     exp.Ext,
		Quality: exp.Quality,
	})
	if err != nil {
		log.Fatalf("[-] Extract error: %v", err)
	}
	if count == 0 {
		log.Fatalf("[-] Error: ffmpeg produced no frames")
	}

	m := &frames.Manifest{
		Name:   anim.Name,
		Frames: count,
		Start:  anim.Start,
		Ext:    exp.Ext,
		Width:  exp.Width,
		Height: exp.Height,
	}
	if err := export.Finalize(dir, m); err != nil {
		log.Fatalf("[-] Manifest error: %v", err)
	}
	fmt.Printf("[+++] Done! %d frames in %s\n", count, dir)
}
