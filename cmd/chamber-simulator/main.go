// chamber-simulator emulates the chamber's sensor bridge over TCP, emitting
// one JSON report per line the way the real microcontroller does. Point
// chamberd's serial-bridge source at it with hostname+port for bench runs.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"net"
	"time"
)

// Report matches the wire payload expected by chamberd
type Report struct {
	CO2         int     `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Mode        string  `json:"mode"`
	Timestamp   string  `json:"timestamp"`
}

func main() {
	var (
		port     = flag.String("port", "8123", "TCP port to listen on")
		interval = flag.Duration("interval", 2*time.Second, "Interval between readings")
		mode     = flag.String("mode", "f", "Cultivation phase to report: s (spawning) or f (fruiting)")
	)
	flag.Parse()

	log.Printf("Chamber sensor bridge emulator")
	log.Printf("Listening on port %s, sending data every %v, phase %q", *port, *interval, *mode)

	listener, err := net.Listen("tcp", ":"+*port)
	if err != nil {
		log.Fatal("Failed to listen:", err)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		log.Printf("Client connected from %s", conn.RemoteAddr())
		go handleConnection(conn, *interval, *mode)
	}
}

func handleConnection(conn net.Conn, interval time.Duration, mode string) {
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		report := generateReading(mode, time.Since(start))
		if err := encoder.Encode(report); err != nil {
			log.Printf("Failed to send report: %v", err)
			return
		}
		log.Printf("Sent: co2=%d ppm, temp=%.1f°C, humidity=%.1f%%", report.CO2, report.Temperature, report.Humidity)
		<-ticker.C
	}
}

// generateReading produces a slow sinusoidal drift with some jitter, roughly
// matching what a sealed chamber does between actuation cycles.
func generateReading(mode string, elapsed time.Duration) Report {
	cycle := elapsed.Seconds() / 600.0

	baseCO2 := 700.0
	if mode == "s" {
		baseCO2 = 14000.0
	}

	return Report{
		CO2:         int(baseCO2 + 300*math.Sin(cycle) + rand.Float64()*50),
		Temperature: 21.0 + 2.0*math.Sin(cycle/3) + rand.Float64()*0.3,
		Humidity:    89.0 + 4.0*math.Sin(cycle/2) + rand.Float64()*0.5,
		Mode:        mode,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}
