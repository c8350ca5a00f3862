// Command mackerel-plugin-broute reports instantaneous power/current
// from a Wi-SUN B-route smart meter through mackerel-agent, adapted
// from lib/smartmeter.go's SmartmeterPlugin: same graph/metric-key
// shape and mackerelio/go-mackerel-plugin wiring, but FetchMetrics now
// drives the tick-based session.Session instead of blocking directly
// on a channel-fed scanner.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"log"
	"log/syslog"
	"time"

	mp "github.com/mackerelio/go-mackerel-plugin"

	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/serial"
	"github.com/hnw/skstack-broute/session"
)

// BroutePlugin is the mackerel-agent plugin entry point, carrying the
// same configuration shape as the teacher's SmartmeterPlugin.
type BroutePlugin struct {
	Prefix         string
	RoutebID       string
	RoutebPassword string
	SerialPort     string
	Termios        bool
	Debug          bool
}

// MetricKeyPrefix implements mp.PluginWithPrefix.
func (p BroutePlugin) MetricKeyPrefix() string {
	if p.Prefix == "" {
		p.Prefix = "smartmeter"
	}
	return p.Prefix
}

// GraphDefinition implements mp.PluginWithGraphs; unchanged from the
// teacher, the metrics this plugin reports did not change shape.
func (p BroutePlugin) GraphDefinition() map[string]mp.Graphs {
	return map[string]mp.Graphs{
		"power": {
			Label: "Electric power consumption [W]",
			Unit:  "integer",
			Metrics: []mp.Metrics{
				{Name: "value", Label: "Electric power"},
			},
		},
		"current": {
			Label: "Electric current [A]",
			Unit:  "integer",
			Metrics: []mp.Metrics{
				{Name: "r", Label: "R-phase current", Stacked: true},
				{Name: "t", Label: "T-phase current", Stacked: true},
			},
		},
	}
}

// FetchMetrics implements mp.PluginWithGraphs. Unlike the teacher's
// version it never talks to the serial port directly: it opens a
// port, builds a fresh session.Session, ticks InitializeTick to
// completion, issues one property request, and ticks
// CommunicationTick until the callback fires or the deadline passes.
func (p BroutePlugin) FetchMetrics() (map[string]float64, error) {
	var port serial.Port
	if p.Termios {
		tp, err := serial.OpenTermios(p.SerialPort)
		if err != nil {
			return nil, err
		}
		defer tp.Close()
		port = tp
	} else {
		rp, err := serial.Open(p.SerialPort)
		if err != nil {
			return nil, err
		}
		defer rp.Close()
		port = rp
	}

	sess := session.New(p.RoutebID, p.RoutebPassword, port)
	if p.Debug {
		sess.SetStatusChangeCallback(func(st session.InitState) {
			log.Printf("init state: %s", st)
		})
	}

	if err := tickUntil(30*time.Second, func() bool { return sess.InitializeTick() }); err != nil {
		return nil, err
	}
	if p.Debug {
		log.Printf("joined: %+v", sess.Parameter())
	}

	sess.SendPropertyRequest([]echonet.PropertyCode{
		echonet.InstantaneousElectricPower,
		echonet.InstantaneousCurrent,
	})

	var metrics map[string]float64
	var cbErr error
	err := tickUntil(10*time.Second, func() bool {
		return sess.CommunicationTick(func(f *echonet.Frame) {
			if p.Debug {
				log.Printf("ERXUDP response: ESV=%02X EPC=%v", byte(f.ESV), f.EPC)
			}
			metrics, cbErr = echoFrameToMetric(f)
		})
	})
	if err != nil {
		return nil, err
	}
	if cbErr != nil {
		return nil, cbErr
	}
	if metrics == nil {
		return nil, errors.New("no ECHONET response received")
	}
	return metrics, nil
}

// tickUntil calls tick repeatedly at a short interval until it
// reports completion or deadline elapses, the same bounded-polling
// shape broutectl's driveInit/driveComm use around the same
// non-blocking tick methods.
func tickUntil(deadline time.Duration, tick func() bool) error {
	cutoff := time.Now().Add(deadline)
	for {
		if tick() {
			return nil
		}
		if time.Now().After(cutoff) {
			return errors.New("tick did not complete before deadline")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func echoFrameToMetric(res *echonet.Frame) (map[string]float64, error) {
	metrics := make(map[string]float64)
	if len(res.EPC) == 0 {
		return nil, errors.New("no property in response")
	}
	for i, epc := range res.EPC {
		switch epc {
		case echonet.InstantaneousElectricPower:
			if len(res.EDT[i]) == 4 {
				metrics["value"] = float64(int32(binary.BigEndian.Uint32(res.EDT[i])))
			}
		case echonet.InstantaneousCurrent:
			if len(res.EDT[i]) == 4 {
				metrics["r"] = float64(int16(binary.BigEndian.Uint16(res.EDT[i][:2]))) / 10.0
				metrics["t"] = float64(int16(binary.BigEndian.Uint16(res.EDT[i][2:]))) / 10.0
			}
		}
	}
	return metrics, nil
}

func main() {
	var (
		optPrefix         = flag.String("metric-key-prefix", "smartmeter", "Metric key prefix")
		optTempfile       = flag.String("tempfile", "", "Temp file name")
		optRoutebID       = flag.String("id", "", "Route B ID")
		optRoutebPassword = flag.String("password", "", "Route B password")
		optSerialPort     = flag.String("device", "", "Path to serial port")
		optTermios        = flag.Bool("termios", false, "Use raw termios I/O instead of tarm/serial")
		optDebug          = flag.Bool("debug", false, "debug mode")
	)
	flag.Parse()

	logger, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_USER, "mackerel-plugin-broute")
	if err != nil {
		panic(err)
	}
	log.SetOutput(logger)

	p := BroutePlugin{
		Prefix:         *optPrefix,
		RoutebID:       *optRoutebID,
		RoutebPassword: *optRoutebPassword,
		SerialPort:     *optSerialPort,
		Termios:        *optTermios,
		Debug:          *optDebug,
	}
	plugin := mp.NewMackerelPlugin(p)
	plugin.Tempfile = *optTempfile
	plugin.Run()
}
