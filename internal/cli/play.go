package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kahyeet/internal/client"
)

// NewPlayCmd builds a headless client for joining a session from a terminal
// or a load script.
func NewPlayCmd() *cobra.Command {
	var (
		server  string
		name    string
		think   time.Duration
		pause   time.Duration
		seed    int64
		correct bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a quiz session as a headless player",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			var rng *rand.Rand
			if seed != 0 {
				rng = rand.New(rand.NewSource(seed))
			}
			driver := client.NewDriver(rng)
			opts := client.Options{
				Addr:     server,
				Username: name,
				Driver:   driver,
				Logger:   logger,
				Think:    think,
				Pause:    pause,
			}
			if correct {
				opts.Answer = client.AlwaysCorrect
			}

			entries, err := client.NewRunner(opts).Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, entry := range entries {
				line := fmt.Sprintf("%-6s  %s: %d", entry.Rank, entry.Username, entry.Score)
				if entry.Disconnected {
					line += " (disconnected)"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "localhost:5050", "game server address")
	cmd.Flags().StringVar(&name, "name", "", "username to join with")
	cmd.Flags().DurationVar(&think, "think", 2*time.Second, "simulated thinking time per question")
	cmd.Flags().DurationVar(&pause, "pause", 2*time.Second, "pause between questions")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for shuffles and answers (0 = time-based)")
	cmd.Flags().BoolVar(&correct, "correct", false, "always answer correctly")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
