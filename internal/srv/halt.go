package srv

import (
	"context"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/sirupsen/logrus"
	"os"
)

var exit = os.Exit

// Halt is where every fatal error ends. It logs err and blocks, the panel
// keeps whatever it showed last. Once ctx is done the process exits with
// status 1.
func Halt(ctx context.Context, err error) {
	logrus.WithFields(logrus.Fields{
		"kind": fault.Of(err),
		"op":   fault.Op(err),
	}).Errorf("Halted: %v", err)

	<-ctx.Done()
	logrus.Printf("Leaving halt state")
	exit(1)
}
