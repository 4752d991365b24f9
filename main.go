package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"

	"sidecar/audio"
	"sidecar/beep"
	"sidecar/brain"
	"sidecar/cache"
	"sidecar/capture"
	"sidecar/encoder"
	"sidecar/engine"
	"sidecar/hotkey"
	"sidecar/log"
	"sidecar/recorder"
	"sidecar/shutdown"
	"sidecar/skill"
	"sidecar/transcriber"
)

var version = "dev"

var (
	shutdownOnce sync.Once
	shutdownFns  []func()
	activeWorker *Worker
)

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func cropMargins() capture.Margins {
	return capture.Margins{
		Top:    envInt("SIDECAR_CROP_TOP", 120),
		Bottom: envInt("SIDECAR_CROP_BOTTOM", 40),
		Left:   envInt("SIDECAR_CROP_LEFT", 0),
		Right:  envInt("SIDECAR_CROP_RIGHT", 0),
	}
}

func main() {
	engineFlag := flag.String("engine", "", "Preferred chat engine: gemini or groq (default: cached or first available)")
	skillsFlag := flag.String("skills", "skills", "Skills directory")
	monitorFlag := flag.Int("monitor", -1, "Monitor index to watch (default: cached or wizard)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	formatFlag := flag.String("format", "wav", "Audio upload format: wav or flac")
	setupFlag := flag.Bool("setup", false, "Force the interactive setup wizard, ignoring the session cache")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	nobeepFlag := flag.Bool("nobeep", false, "Disable recording cue sounds")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("sidecar %s\n", version)
		os.Exit(0)
	}

	godotenv.Load()

	if *doctorFlag {
		os.Exit(runDoctor())
	}

	switch *formatFlag {
	case "wav", "flac":
	default:
		fmt.Printf("Error: unknown format %q (use wav or flac)\n", *formatFlag)
		os.Exit(1)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *nobeepFlag {
		beep.Disable()
	}

	googleKey := os.Getenv("GOOGLE_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")

	engines := make(map[string]engine.Engine)
	if googleKey != "" {
		engines[brain.NameGemini] = engine.NewGemini(googleKey, "high")
	}
	if groqKey != "" {
		engines[brain.NameGroq] = engine.NewGroq(groqKey)
	}
	if len(engines) == 0 {
		fmt.Println("Error: no API key found. Set GOOGLE_API_KEY or GROQ_API_KEY (a .env file works too).")
		os.Exit(1)
	}
	available := make([]string, 0, 2)
	for _, name := range []string{brain.NameGemini, brain.NameGroq} {
		if _, ok := engines[name]; ok {
			available = append(available, name)
		}
	}

	skills := skill.NewManager(*skillsFlag)

	wd, _ := os.Getwd()
	store := cache.New(wd)

	// Session settings: cache fast-boot unless -setup or validation fails.
	var sess cache.Session
	restored := false
	if !*setupFlag {
		if cached, err := store.Load(); err != nil {
			log.Warnf("session cache unreadable: %v", err)
			store.Clear()
		} else if cached != nil && validateCache(cached, engines, skills) {
			sess = *cached
			restored = true
			fmt.Printf("[i] Restoring session: %s | monitor %d | %s (use -setup to reconfigure)\n",
				sess.SkillName, sess.MonitorIndex, sess.EngineName)
		}
	}

	if !restored {
		name, err := selectEngine(available)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sess.EngineName = name

		mon, err := selectMonitor()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sess.MonitorIndex = mon

		skillName, err := selectSkill(skills)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sess.SkillName = skillName

		_, placeholders, err := skills.Load(skillName)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		sess.Placeholders = promptPlaceholders(skillName, placeholders)
		sess.SessionContext = promptSessionContext()
	}

	// Flags override whatever the cache or wizard produced.
	if *engineFlag != "" {
		sess.EngineName = *engineFlag
	}
	if *monitorFlag >= 0 {
		sess.MonitorIndex = *monitorFlag
	}

	logger := log.Logger()

	// Audio capture chain: context -> device -> sensor -> recorder.
	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	onShutdown(audioCtx.Close)

	deviceName := sess.AudioDevice
	if *deviceFlag != "" {
		deviceName = *deviceFlag
	}
	var selectedDevice *audio.DeviceInfo
	if deviceName != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == deviceName {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			log.Warnf("device %q not found, using default", deviceName)
			deviceName = ""
		}
	}
	if !restored && *deviceFlag == "" && selectedDevice == nil {
		if dev, err := audio.SelectDevice(audioCtx); err == nil && dev != nil {
			selectedDevice = dev
			deviceName = dev.Name
		}
	}
	sess.AudioDevice = deviceName

	captureDevice, err := audioCtx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	onShutdown(captureDevice.Close)

	sensor := audio.NewSensor(logger, captureDevice, *formatFlag)
	stt := transcriber.NewGroq(groqKey)
	rec := recorder.New(logger, sensor, stt, *formatFlag)

	// Intelligence: brain over the engine table, primed with the skill.
	b, err := brain.New(logger, engines, sess.EngineName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	sess.EngineName = b.ActiveName()

	data, _, err := skills.Load(sess.SkillName)
	if err != nil {
		fmt.Printf("Error loading skill %q: %v\n", sess.SkillName, err)
		os.Exit(1)
	}
	data = skill.Resolve(data, sess.Placeholders)
	if sess.SessionContext != "" {
		data = skill.AppendContext(data, sess.SessionContext)
	}
	b.SetSkill(data, skill.Assemble(data))

	fmt.Print("[i] Starting chat session...")
	b.InitChat()
	fmt.Println(" ready.")
	log.SessionStart(sess.EngineName, sess.SkillName)

	if err := store.Save(sess); err != nil {
		log.Warnf("saving session cache: %v", err)
	}

	screen := capture.NewScreen(logger, sess.MonitorIndex, cropMargins())

	// Display layer.
	var sink EventSink
	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()
		<-tuiReady
		sink = cueSink{inner: tuiSink{}}
	} else {
		sink = cueSink{inner: consoleSink{}}
	}

	worker := NewWorker(logger, b, screen, rec, skills, sink)
	activeWorker = worker
	worker.SetSkillName(sess.SkillName)
	worker.publishModeLine()
	sink.Ready()

	onCopyLast = func() {
		if text := worker.LastResponse(); text != "" {
			clipboard.WriteAll(text)
		}
	}

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkeys: %v\n", err)
		os.Exit(1)
	}
	onShutdown(hk.Unregister)

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	ctx := context.Background()
	for {
		select {
		case action := <-hk.Events():
			log.Info("hotkey: " + string(action))
			switch action {
			case hotkey.ActionPixel:
				go worker.HandlePixel(ctx)
			case hotkey.ActionTalk:
				go worker.HandleTalk(ctx)
			case hotkey.ActionModel:
				go worker.HandleToggleModel()
			case hotkey.ActionEngine:
				go worker.HandleSwitchEngine()
			case hotkey.ActionSkill:
				runSkillSwap(worker, skills)
			}
		case <-sigChan:
			gracefulShutdown()
		}
	}
}

// runDoctor checks the environment without touching any remote API: hotkey
// backend, audio capture devices, monitors and screen grab. Returns the
// process exit code.
func runDoctor() int {
	fmt.Println("sidecar doctor - system diagnostics")
	fmt.Println("===================================")
	pass := true

	fmt.Print("[1/3] Hotkeys: ")
	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		pass = false
	} else {
		fmt.Printf("PASS: %s\n", msg)
	}

	fmt.Print("[2/3] Audio capture: ")
	if audioCtx, err := audio.NewContext(); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		pass = false
	} else {
		devices, err := audioCtx.Devices()
		switch {
		case err != nil:
			fmt.Printf("FAIL: listing devices: %v\n", err)
			pass = false
		case len(devices) == 0:
			fmt.Println("FAIL: no capture devices found")
			pass = false
		default:
			fmt.Printf("PASS: %d device(s)\n", len(devices))
			for _, d := range devices {
				tag := ""
				if audio.IsBluetooth(d.Name) {
					tag = " (bluetooth, lower quality)"
				}
				fmt.Printf("        %s%s\n", d.Name, tag)
			}
		}
		audioCtx.Close()
	}

	fmt.Print("[3/3] Screen capture: ")
	if n := capture.Monitors(); n == 0 {
		fmt.Println("FAIL: no monitors detected")
		pass = false
	} else {
		screen := capture.NewScreen(log.Logger(), 0, capture.Margins{})
		if png := screen.Capture(); len(png) == 0 {
			fmt.Printf("FAIL: %d monitor(s) but grab of monitor 0 failed\n", n)
			pass = false
		} else {
			fmt.Printf("PASS: %d monitor(s), grabbed %d KB\n", n, len(png)/1024)
		}
	}

	fmt.Println()
	if pass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

// runSkillSwap suspends the TUI for the raw-mode menus, then pivots.
func runSkillSwap(worker *Worker, skills *skill.Manager) {
	if tuiProgram != nil {
		tuiProgram.ReleaseTerminal()
	}
	name, err := selectSkill(skills)
	var values map[string]string
	var extra string
	if err == nil {
		_, placeholders, loadErr := skills.Load(name)
		if loadErr == nil {
			values = promptPlaceholders(name, placeholders)
			extra = promptSessionContext()
		}
	}
	if tuiProgram != nil {
		tuiProgram.RestoreTerminal()
	}
	if err != nil {
		log.Warnf("skill selection failed: %v", err)
		return
	}
	go worker.HandleSkillSwap(name, values, extra)
}

func validateCache(sess *cache.Session, engines map[string]engine.Engine, skills *skill.Manager) bool {
	if _, ok := engines[sess.EngineName]; !ok {
		return false
	}
	if !skills.Exists(sess.SkillName) {
		return false
	}
	if sess.MonitorIndex < 0 || sess.MonitorIndex >= capture.Monitors() {
		return false
	}
	return true
}

func onShutdown(fn func()) {
	shutdownFns = append(shutdownFns, fn)
}

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			shutdownFns[i]()
		}
		if activeWorker != nil {
			log.SessionEnd(activeWorker.Turns())
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

// cueSink decorates a sink with audible recording cues.
type cueSink struct {
	inner EventSink
}

func (c cueSink) TurnStart(vector, model string)  { c.inner.TurnStart(vector, model) }
func (c cueSink) Chunk(text string, thought bool) { c.inner.Chunk(text, thought) }
func (c cueSink) Status(text string)              { c.inner.Status(text) }
func (c cueSink) TurnEnd()                        { c.inner.TurnEnd() }
func (c cueSink) ModeLine(text string)            { c.inner.ModeLine(text) }
func (c cueSink) Ready()                          { c.inner.Ready() }

func (c cueSink) TurnError(text string) {
	go beep.PlayError()
	c.inner.TurnError(text)
}

func (c cueSink) RecordingStart() {
	go beep.PlayStart()
	c.inner.RecordingStart()
}

func (c cueSink) RecordingStop() {
	go beep.PlayEnd()
	c.inner.RecordingStop()
}
