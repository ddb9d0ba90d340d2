package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenTransitTools/shuttletrack/app/trip-summary-svc/summarysvc"
	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/OpenTransitTools/shuttletrack/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "TRIP_SUMMARY_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		DB struct {
			Driver     string `conf:"default:sqlite"`
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:itinerary.db"`
			DisableTLS bool   `conf:"default:true"`
		}
		NATS struct {
			Enabled              bool   `conf:"default:false"`
			Url                  string `conf:"default:nats://localhost:4222"`
			Subject              string `conf:"default:trip-summaries"`
			ExpireSummarySeconds int    `conf:"default:86400"`
		}
		Web struct {
			HttpPort int `conf:"default:8080"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve recorded itinerary pipeline runs and trip summaries"
	const prefix = "TRIP_SUMMARY_SVC"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		Driver:     cfg.DB.Driver,
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()
	if err = itinerary.CreateSchema(db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to nats at %s", cfg.NATS.Url)
		natsConn, err = nats.Connect(cfg.NATS.Url, nats.Name("trip-summary-svc"))
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsConn.Close()
	}

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	summarysvc.StartServices(log, db, cfg.Web.HttpPort, natsConn, cfg.NATS.Subject, cfg.NATS.ExpireSummarySeconds,
		shutdown)
	return nil
}
