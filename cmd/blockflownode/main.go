// Command blockflownode runs a blockflow broker: the chain grid, the
// handler mesh, the fair miner, and the inter-clique sync protocol, all
// wired from one configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockflow-labs/blockflow-node/foundation/logger"
)

// build is the git version of this program. It is set using build flags
// in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	root := &cobra.Command{
		Use:          "blockflownode",
		Short:        "A broker node for the blockflow chain grid",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(log), genesisCmd(log))

	if err := root.Execute(); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func eventHandler(log *zap.SugaredLogger) func(v string, args ...any) {
	return func(v string, args ...any) {
		log.Info(fmt.Sprintf(v, args...))
	}
}
