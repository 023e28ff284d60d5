package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
)

// genesisCmd writes a development genesis file every node in a local
// network can share.
func genesisCmd(log *zap.SugaredLogger) *cobra.Command {
	var path string
	var groups uint16

	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Write a development genesis file",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := genesis.Genesis{
				Date:                  time.Now().UTC(),
				ChainID:               1,
				TransPerBlock:         16,
				GasPrice:              15,
				GroupCount:            groups,
				MaxMiningTarget:       6,
				NumZerosAtLeastInHash: 1,
				RetargetWindow:        17,
				TargetBlockTime:       8 * time.Second,
				TipsPruneInterval:     32,
				TipsPruneDuration:     10 * time.Minute,
				MaxOrphanBlocks:       1024,
				NonceStep:             5_000_000,
				MiningReward:          700,
			}

			if err := gen.Validate(); err != nil {
				return fmt.Errorf("validating genesis: %w", err)
			}

			data, err := json.MarshalIndent(gen, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding genesis: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating genesis directory: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing genesis: %w", err)
			}

			log.Infow("genesis", "status", "written", "path", path, "groups", groups)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "zblock/genesis.json", "Where to write the genesis file.")
	cmd.Flags().Uint16VarP(&groups, "groups", "g", 2, "Number of mining groups (the grid has groups squared chains).")

	return cmd
}
