// Command broutectl drives a Session to a steady state over a
// Wi-SUN B-route serial module, the way glennswest-ipmiserial/main.go
// wires config/signal handling/server together, structured into
// cobra subcommands the way other_examples/wingthing lays out its CLI
// (SPEC_FULL.md Ambient Stack).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hnw/skstack-broute/config"
	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/server"
	"github.com/hnw/skstack-broute/session"
	"github.com/hnw/skstack-broute/serial"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "broutectl",
		Short: "Drive a Wi-SUN B-route session to a smart meter",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")

	root.AddCommand(newRunCmd())
	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadAndOpen(cfg *config.Config) (*session.Session, func() error, error) {
	var port serial.Port
	var closer func() error
	if cfg.Serial.Termios {
		p, err := serial.OpenTermios(cfg.Serial.Device)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open termios serial port")
		}
		port, closer = p, p.Close
	} else {
		p, err := serial.Open(cfg.Serial.Device)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open serial port")
		}
		port, closer = p, p.Close
	}

	sess := session.NewWithConfig(cfg.RouteB.ID, cfg.RouteB.Password, port, cfg.SessionConfig(), session.DefaultCodec, nil)
	return sess, closer, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Join the meter and poll instantaneous power/current",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			configureLogging(cfg.Log)

			sess, closeSerial, err := loadAndOpen(cfg)
			if err != nil {
				return err
			}
			defer closeSerial()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info("shutting down")
				cancel()
			}()

			watcher, err := config.Watch(configPath, func(*config.Config) {
				log.Info("config change detected; restart to apply new serial/credential settings")
			})
			if err == nil {
				defer watcher.Close()
			}

			sess.SetStatusChangeCallback(func(st session.InitState) {
				log.WithField("tick", uuid.NewString()).WithField("state", st.String()).Debug("init tick")
			})

			if cfg.Server.Enabled {
				srv := server.New(sess, cfg.Server.Port)
				go srv.Run(ctx)
			}

			if err := driveInit(ctx, sess); err != nil {
				return err
			}

			log.Info("joined; polling instantaneous power/current")
			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				sess.SendPropertyRequest([]echonet.PropertyCode{
					echonet.InstantaneousElectricPower,
					echonet.InstantaneousCurrent,
				})
				if !driveComm(ctx, sess, printMetrics) {
					log.Warn("comm tick did not complete before timeout")
				}
				time.Sleep(10 * time.Second)
			}
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run initialization only and dump the negotiated parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			configureLogging(cfg.Log)

			sess, closeSerial, err := loadAndOpen(cfg)
			if err != nil {
				return err
			}
			defer closeSerial()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := driveInit(ctx, sess); err != nil {
				return err
			}

			out, _ := json.MarshalIndent(sess.Parameter(), "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

// driveInit ticks InitializeTick every 100 ms until
// terminal or ctx is done, the blocking convenience a CLI entry point
// needs even though InitializeTick itself never blocks (§5).
func driveInit(ctx context.Context, sess *session.Session) error {
	for {
		if sess.InitializeTick() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New("initialization did not complete before context cancellation")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func driveComm(ctx context.Context, sess *session.Session, cb session.AppCallback) bool {
	deadline := time.After(10 * time.Second)
	for {
		if sess.CommunicationTick(cb) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func printMetrics(f *echonet.Frame) {
	for i, epc := range f.EPC {
		log.WithField("property", fmt.Sprintf("%02X", byte(epc))).WithField("value", fmt.Sprintf("%X", f.EDT[i])).Info("received property")
	}
}

func configureLogging(cfg config.LogConfig) {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(f)
		}
	}
}
