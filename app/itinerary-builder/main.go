package main

import (
	"errors"
	"fmt"
	logger "log"
	"os"
	"path/filepath"

	"github.com/OpenTransitTools/shuttletrack/app/itinerary-builder/pipeline"
	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/OpenTransitTools/shuttletrack/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "ITINERARY : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		if errors.Is(err, pipeline.ErrMissingInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type config struct {
	conf.Version
	Args conf.Args
	Log  struct {
		Path string `conf:"default:tracker.log"`
		Url  string
	}
	Study struct {
		File string `conf:"default:config/study.yml"`
	}
	Output struct {
		Dir                string `conf:"default:output"`
		SpreadsheetSafeIds bool   `conf:"default:false"`
	}
	Filter struct {
		MinDuration          float64 `conf:"default:120"`
		ItineraryMinDuration float64 `conf:"default:0"`
	}
	DB struct {
		Enabled    bool   `conf:"default:false"`
		Driver     string `conf:"default:sqlite"`
		User       string `conf:"default:postgres"`
		Password   string `conf:"default:postgres,noprint"`
		Host       string `conf:"default:0.0.0.0"`
		Name       string `conf:"default:itinerary.db"`
		DisableTLS bool   `conf:"default:true"`
	}
	NATS struct {
		Enabled bool   `conf:"default:false"`
		Url     string `conf:"default:nats://localhost:4222"`
		Subject string `conf:"default:trip-summaries"`
	}
}

func run(log *logger.Logger) error {
	var cfg config
	cfg.Version.SVN = build
	cfg.Version.Desc = "Build visitor itineraries and trip summaries from shuttle tracker logs"
	const prefix = "ITINERARY"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
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

	command := cfg.Args.Num(0)
	if command == "list" {
		return listRuns(log, cfg)
	}
	if !isPipelineCommand(command) {
		usage, err := conf.Usage(prefix, &cfg)
		if err != nil {
			return fmt.Errorf("generating config usage: %w", err)
		}
		printUsage(usage)
		return nil
	}

	study, err := itinerary.LoadStudy(cfg.Study.File)
	if err != nil {
		return err
	}
	log.Printf("main: Loaded study %s : areas %v : invalid locations %v", cfg.Study.File, study.Areas.AreaNames(),
		study.InvalidLocations)
	options := pipeline.Options{
		MinDuration:          cfg.Filter.MinDuration,
		ItineraryMinDuration: cfg.Filter.ItineraryMinDuration,
		SpreadsheetSafeIds:   cfg.Output.SpreadsheetSafeIds,
	}
	calendar := itinerary.NewDayTypeCalendar()

	switch command {
	case "parse":
		args, err := requireArgs(cfg.Args, command, "log file", "output file")
		if err != nil {
			return err
		}
		_, err = pipeline.ParseLogFile(log, study, options, args[0], args[1])
		return err
	case "clean":
		args, err := requireArgs(cfg.Args, command, "input file", "output file")
		if err != nil {
			return err
		}
		_, err = pipeline.CleanItineraryFile(log, study, options, args[0], args[1])
		return err
	case "areas":
		args, err := requireArgs(cfg.Args, command, "input file", "output file")
		if err != nil {
			return err
		}
		_, err = pipeline.MapAreasFile(log, study, options, args[0], args[1])
		return err
	case "split":
		args, err := requireArgs(cfg.Args, command, "input file", "output directory")
		if err != nil {
			return err
		}
		_, err = pipeline.SplitByAreaFiles(log, study, options, args[0], args[1])
		return err
	case "analyze":
		args, err := requireArgs(cfg.Args, command, "input file", "output directory", "table suffix")
		if err != nil {
			return err
		}
		_, err = pipeline.AnalyzeItineraryFile(log, calendar, args[0], args[1], args[2])
		return err
	case "count":
		args, err := requireArgs(cfg.Args, command, "grouped unique locations file", "output file")
		if err != nil {
			return err
		}
		_, err = pipeline.CountLocationsFile(log, args[0], args[1])
		return err
	}
	return runPipeline(log, cfg, study, calendar, options)
}

// runPipeline runs every stage on the configured log, recording and publishing results when enabled
func runPipeline(log *logger.Logger,
	cfg config,
	study *itinerary.Study,
	calendar *itinerary.DayTypeCalendar,
	options pipeline.Options) (err error) {

	logPath := cfg.Log.Path
	if len(cfg.Log.Url) > 0 {
		logPath, err = pipeline.FetchLog(log, cfg.Log.Url, filepath.Join(cfg.Output.Dir, "logs"))
		if err != nil {
			return err
		}
	}

	var db *sqlx.DB
	if cfg.DB.Enabled {
		db, err = openDatabase(log, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Name)
			closeErr := db.Close()
			if closeErr != nil {
				log.Printf("main: error closing database: %v", closeErr)
			}
		}()
		if err = itinerary.CreateSchema(db); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	var natsConnection *nats.Conn
	if cfg.NATS.Enabled {
		log.Printf("main: Connecting to nats at %s", cfg.NATS.Url)
		natsConnection, err = nats.Connect(cfg.NATS.Url, nats.Name("itinerary-builder"))
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsConnection.Close()
	}

	var publisher *pipeline.ResultsPublisher
	if db != nil || natsConnection != nil {
		publisher = pipeline.MakeResultsPublisher(log, db, natsConnection, cfg.NATS.Subject)
	}

	completed, err := pipeline.Run(log, study, calendar, options, publisher, logPath, cfg.Output.Dir)
	if err != nil {
		return err
	}
	log.Printf("main: Completed %v", completed)
	if natsConnection != nil {
		return natsConnection.Flush()
	}
	return nil
}

// listRuns prints all pipeline runs recorded in the database
func listRuns(log *logger.Logger, cfg config) error {
	db, err := openDatabase(log, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	if err = itinerary.CreateSchema(db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	runs, err := itinerary.GetAllRuns(db)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		log.Printf("No pipeline runs recorded")
		return nil
	}
	for _, run := range runs {
		tables, err := itinerary.GetTripSummaryTableNames(db, run.Id)
		if err != nil {
			return err
		}
		log.Printf("%v tables:%v", run, tables)
	}
	return nil
}

func openDatabase(log *logger.Logger, cfg config) (*sqlx.DB, error) {
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
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	return db, nil
}

func isPipelineCommand(command string) bool {
	switch command {
	case "parse", "clean", "areas", "split", "analyze", "count", "run":
		return true
	}
	return false
}

// requireArgs returns the arguments following command, or an error naming the first one missing
func requireArgs(args conf.Args, command string, names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = args.Num(i + 1)
		if len(values[i]) == 0 {
			return nil, fmt.Errorf("expected %s with command %s", name, command)
		}
	}
	return values, nil
}

func printUsage(confUsage string) {
	fmt.Println("parse <log> <out.csv>: build itineraries from a tracker log")
	fmt.Println("clean <in.csv> <out.csv>: fuse repeated visits and drop invalid locations")
	fmt.Println("areas <in.csv> <out.csv>: replace locations with their area")
	fmt.Println("split <in.csv> <outDir>: write one itinerary file per area")
	fmt.Println("analyze <in.csv> <outDir> <suffix>: write trip summary tables")
	fmt.Println("count <grouped_unique.csv> <out.csv>: count subjects by number of locations visited")
	fmt.Println("run: run every stage on the configured log")
	fmt.Println("list: list pipeline runs recorded in the database")
	fmt.Println(confUsage)
}
