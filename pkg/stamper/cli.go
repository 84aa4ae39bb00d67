package stamper

import (
	"fmt"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/transitkit/shapedist/pkg/geometry"
	"github.com/transitkit/shapedist/pkg/gtfs"
	"github.com/transitkit/shapedist/pkg/registry"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "dataset",
		Usage: "Stamp distance traveled values into GTFS datasets",
		Subcommands: []*cli.Command{
			{
				Name:  "stamp",
				Usage: "Generate shapes, trips & stop_times files with shape_dist_traveled populated",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input",
						Usage: "Path of the GTFS dataset (directory or zip)",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Directory the new txt files get written to",
					},
					&cli.StringFlag{
						Name:  "units",
						Usage: "Distance unit for shape_dist_traveled (meters, kilometers, miles, feet)",
						Value: string(geometry.UnitMeters),
					},
					&cli.IntFlag{
						Name:  "threads",
						Usage: "Number of shapes to process in parallel",
					},
					&cli.StringFlag{
						Name:  "registry",
						Usage: "Path of a yaml feed registry",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Identifier of a registered feed to process",
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Fix the random seed for reproducible runs",
					},
				},
				Action: func(c *cli.Context) error {
					options, err := optionsFromContext(c)
					if err != nil {
						return err
					}

					result, err := Run(options)
					if err != nil {
						return err
					}

					log.Info().
						Int("shapes", result.ShapesProcessed).
						Str("output", options.OutputDirectory).
						Msg("Finished - check the new files then remove the _new suffix")

					return nil
				},
			},
			{
				Name:  "inspect",
				Usage: "Print a summary of a parsed GTFS dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input",
						Usage: "Path of the GTFS dataset (directory or zip)",
					},
					&cli.StringFlag{
						Name:  "registry",
						Usage: "Path of a yaml feed registry",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Identifier of a registered feed to inspect",
					},
				},
				Action: func(c *cli.Context) error {
					input := c.String("input")
					if c.String("id") != "" {
						feed, err := lookupFeed(c)
						if err != nil {
							return err
						}
						input = feed.Source
					}
					if input == "" {
						return fmt.Errorf("either --input or --registry and --id must be given")
					}

					schedule, err := gtfs.ParseDataset(input)
					if err != nil {
						return err
					}

					shapeLines := schedule.ShapeLines()

					pretty.Println(struct {
						Agencies          int
						Stops             int
						Routes            int
						Trips             int
						StopTimes         int
						ShapePoints       int
						Shapes            int
						TripsWithoutShape int
					}{
						Agencies:          len(schedule.Agencies),
						Stops:             len(schedule.Stops),
						Routes:            len(schedule.Routes),
						Trips:             len(schedule.Trips),
						StopTimes:         len(schedule.StopTimes),
						ShapePoints:       len(schedule.Shapes),
						Shapes:            len(shapeLines),
						TripsWithoutShape: len(schedule.Trips) - len(schedule.TripShapes()),
					})

					return nil
				},
			},
		},
	}
}

func optionsFromContext(c *cli.Context) (Options, error) {
	options := Options{
		InputPath:       c.String("input"),
		OutputDirectory: c.String("output"),
		Threads:         c.Int("threads"),
		Seed:            c.Int64("seed"),
	}

	unitValue := c.String("units")

	if c.String("id") != "" {
		feed, err := lookupFeed(c)
		if err != nil {
			return Options{}, err
		}

		options.InputPath = feed.Source
		if feed.OutputDirectory != "" {
			options.OutputDirectory = feed.OutputDirectory
		}
		if feed.Units != "" {
			unitValue = feed.Units
		}
	}

	if options.InputPath == "" {
		return Options{}, fmt.Errorf("either --input or --registry and --id must be given")
	}
	if options.OutputDirectory == "" {
		return Options{}, fmt.Errorf("an output directory must be given")
	}

	unit, err := geometry.ParseUnit(unitValue)
	if err != nil {
		return Options{}, err
	}
	options.Unit = unit

	return options, nil
}

func lookupFeed(c *cli.Context) (registry.Feed, error) {
	registryPath := c.String("registry")
	if registryPath == "" {
		return registry.Feed{}, fmt.Errorf("--id requires a --registry file")
	}

	feeds, err := registry.Load(registryPath)
	if err != nil {
		return registry.Feed{}, err
	}

	return feeds.Get(c.String("id"))
}
