package main

import (
	"context"

	"github.com/lalmajed/citysh/cmd/parcelharvest/commands"
	"github.com/lalmajed/citysh/lib/serviceutil"
	"github.com/lalmajed/citysh/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "parcelharvest")
	commands.ExecuteContext(serviceutil.SignalContext())
	telemetry.Shutdown(context.Background())
}
