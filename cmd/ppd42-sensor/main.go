// Command ppd42-sensor reads a Shinyei PPD42NS dust sensor on two GPIO lines
// and reports particle concentration once per sampling window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/config"
	"github.com/sweeney/ppd42-sensor/internal/gpio"
	"github.com/sweeney/ppd42-sensor/internal/logic"
	"github.com/sweeney/ppd42-sensor/internal/mqtt"
	"github.com/sweeney/ppd42-sensor/internal/report"
	"github.com/sweeney/ppd42-sensor/internal/status"
	"github.com/sweeney/ppd42-sensor/internal/web"
)

const defaultConfigPath = "/etc/ppd42-sensor.yaml"

func main() {
	var opts options
	fs := newFlagSet(&opts, flag.ExitOnError)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	opts.apply(cfg, fs)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, opts.printState, opts.listPorts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// options holds the command line. Flags that were set override the config file.
type options struct {
	configPath string
	printState bool
	listPorts  bool

	backend string
	chip    string
	pinPM10 int
	pinPM25 int
	invert  bool

	window     time.Duration
	poll       time.Duration
	zeroPolicy string

	format     string
	stdout     bool
	serialPort string
	baud       int

	broker string
	topic  string

	httpAddr string
}

func newFlagSet(o *options, handling flag.ErrorHandling) *flag.FlagSet {
	def := config.Default()
	fs := flag.NewFlagSet("ppd42-sensor", handling)

	fs.StringVar(&o.configPath, "config", defaultConfigPath, "YAML config file (missing file uses defaults)")
	fs.BoolVar(&o.printState, "print-state", false, "Print current line levels and exit")
	fs.BoolVar(&o.listPorts, "list-ports", false, "List serial ports and exit")

	fs.StringVar(&o.backend, "backend", def.GPIO.Backend, `GPIO backend ("cdev" or "periph")`)
	fs.StringVar(&o.chip, "chip", def.GPIO.Chip, "GPIO chip (cdev backend)")
	fs.IntVar(&o.pinPM10, "pin-pm10", def.GPIO.PinPM10, "BCM pin number for the PM1.0 output (P1)")
	fs.IntVar(&o.pinPM25, "pin-pm25", def.GPIO.PinPM25, "BCM pin number for the PM2.5 output (P2)")
	fs.BoolVar(&o.invert, "invert", def.GPIO.Invert, "Lines pass through an inverting buffer")

	fs.DurationVar(&o.window, "window", def.Sampling.Window, "Sampling window")
	fs.DurationVar(&o.poll, "poll", def.Sampling.Poll, "Window check interval")
	fs.StringVar(&o.zeroPolicy, "zero-policy", def.Sampling.ZeroPolicy, `Idle reading ("zero" reports 0, "legacy" reports the curve offset)`)

	fs.StringVar(&o.format, "format", def.Report.Format, `Record format ("json" or "csv")`)
	fs.BoolVar(&o.stdout, "stdout", def.Report.Stdout, "Write records to stdout")
	fs.StringVar(&o.serialPort, "serial", def.Report.SerialPort, "Serial port for records (empty to disable)")
	fs.IntVar(&o.baud, "baud", def.Report.Baud, "Serial baud rate")

	fs.StringVar(&o.broker, "broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&o.topic, "topic", def.MQTT.Topic, "MQTT base topic")

	fs.StringVar(&o.httpAddr, "http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	return fs
}

// apply copies every flag that was set on the command line into cfg.
func (o *options) apply(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.GPIO.Backend = o.backend
		case "chip":
			cfg.GPIO.Chip = o.chip
		case "pin-pm10":
			cfg.GPIO.PinPM10 = o.pinPM10
		case "pin-pm25":
			cfg.GPIO.PinPM25 = o.pinPM25
		case "invert":
			cfg.GPIO.Invert = o.invert
		case "window":
			cfg.Sampling.Window = o.window
		case "poll":
			cfg.Sampling.Poll = o.poll
		case "zero-policy":
			cfg.Sampling.ZeroPolicy = o.zeroPolicy
		case "format":
			cfg.Report.Format = o.format
		case "stdout":
			cfg.Report.Stdout = o.stdout
		case "serial":
			cfg.Report.SerialPort = o.serialPort
		case "baud":
			cfg.Report.Baud = o.baud
		case "broker":
			cfg.MQTT.Broker = o.broker
		case "topic":
			cfg.MQTT.Topic = o.topic
		case "http":
			cfg.HTTP.Addr = o.httpAddr
		}
	})
}

func run(cfg *config.Config, printState, listPorts bool) error {
	if listPorts {
		return printPorts(os.Stdout)
	}

	policy, err := logic.ParseZeroPolicy(cfg.Sampling.ZeroPolicy)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	// Monotonic clock shared by the sampler and the periph backend.
	epoch := time.Now()
	mono := func() time.Duration { return time.Since(epoch) }

	src, err := gpio.New(cfg.GPIO.Backend, cfg.GPIO.Chip, cfg.GPIO.PinPM10, cfg.GPIO.PinPM25, cfg.GPIO.Invert, mono)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	if printState {
		if err := src.Start(func(gpio.Edge) {}); err != nil {
			return fmt.Errorf("start gpio: %w", err)
		}
		pm10, pm25, err := src.Levels()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("PM1.0: %s, PM2.5: %s\n", levelString(pm10), levelString(pm25))
		return nil
	}

	reporter, err := openReporters(cfg.Report, format, os.Stdout)
	if err != nil {
		return err
	}
	defer reporter.Close()

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Topic:      cfg.MQTT.Topic,
			BufferSize: cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	if len(reporter) == 0 && publisher == nil {
		log.Printf("warning: no stdout, serial or MQTT output configured")
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	pm10 := logic.NewChannel(logic.ChannelPM10)
	pm25 := logic.NewChannel(logic.ChannelPM25)
	sampler := logic.NewSampler(logic.SamplerConfig{
		Window: cfg.Sampling.Window,
		Policy: policy,
	}, logic.MillisOf(mono()), pm10, pm25)

	if err := src.Start(gpio.Dispatch(pm10, pm25)); err != nil {
		return fmt.Errorf("start gpio: %w", err)
	}

	log.Printf("started: backend=%s pm1.0=%d pm2.5=%d window=%v poll=%v zero=%s format=%s serial=%q broker=%q",
		cfg.GPIO.Backend, cfg.GPIO.PinPM10, cfg.GPIO.PinPM25, cfg.Sampling.Window, cfg.Sampling.Poll,
		policy, format, cfg.Report.SerialPort, cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Sampling.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(sampler, reporter, publisher, mqttStatus, tracker, time.Now, mono, ticker.C, sigCh)
}

// runLoop closes a window whenever one is due. publisher, mqttStatus and
// tracker may be nil. The window open at shutdown is discarded.
func runLoop(sampler *logic.Sampler, reporter report.Reporter, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, mono func() time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if publisher == nil {
				return nil
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			at := logic.MillisOf(mono())
			r, ok := sampler.Tick(at)
			if tracker != nil {
				tracker.SetNextReading(sampler.Remaining(at))
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
			if !ok {
				continue
			}
			r.Timestamp = now()
			logReading(r)

			if err := reporter.Report(r); err != nil {
				log.Printf("report error: %v", err)
			}
			if publisher != nil {
				if err := publisher.Publish(r); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}
			if tracker != nil {
				tracker.Update(r)
			}
		}
	}
}

func logReading(r logic.Reading) {
	log.Printf("window %d: PM1.0 ratio=%.3f%% conc=%.2f ugm3=%.3f pulses=%d | PM2.5 ratio=%.3f%% conc=%.2f ugm3=%.3f pulses=%d",
		r.Seq,
		r.PM10.Ratio, r.PM10.Concentration, r.PM10.UGM3, r.PM10.Pulses,
		r.PM25.Ratio, r.PM25.Concentration, r.PM25.UGM3, r.PM25.Pulses)
	for _, c := range []logic.ChannelReading{r.PM10, r.PM25} {
		if c.Clamped {
			log.Printf("window %d: %s low time %dus exceeds the window, clamped", r.Seq, c.Channel, c.LowMicros)
		}
		if c.Spurious > 0 || c.Restarted > 0 {
			log.Printf("window %d: %s ignored %d rising and %d repeated falling edges",
				r.Seq, c.Channel, c.Spurious, c.Restarted)
		}
	}
}

// openReporters builds the stdout and serial record sinks.
func openReporters(cfg config.ReportConfig, format report.Format, stdout io.Writer) (report.Multi, error) {
	var rs report.Multi
	if cfg.Stdout {
		rs = append(rs, report.NewLineReporter(stdout, format))
	}
	if cfg.SerialPort != "" {
		sr, err := report.OpenSerial(cfg.SerialPort, cfg.Baud, format)
		if err != nil {
			return nil, errors.Join(err, rs.Close())
		}
		rs = append(rs, sr)
	}
	return rs, nil
}

func printPorts(w io.Writer) error {
	ports, err := report.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		WindowMs:   cfg.Sampling.Window.Milliseconds(),
		PollMs:     cfg.Sampling.Poll.Milliseconds(),
		ZeroPolicy: cfg.Sampling.ZeroPolicy,
		Format:     cfg.Report.Format,
		Backend:    cfg.GPIO.Backend,
		PinPM10:    cfg.GPIO.PinPM10,
		PinPM25:    cfg.GPIO.PinPM25,
		SerialPort: cfg.Report.SerialPort,
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
	}
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}
