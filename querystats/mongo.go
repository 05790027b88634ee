package querystats

import (
	"context"

	"go.mongodb.org/mongo-driver/event"

	"github.com/drblury/apienvelope/scope"
)

// NewMongoMonitor returns a command monitor that records finished commands
// on the request scope carried by the operation context. Install it with
// options.Client().SetMonitor.
func NewMongoMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			recordMongo(ctx, &evt.CommandFinishedEvent)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			recordMongo(ctx, &evt.CommandFinishedEvent)
		},
	}
}

func recordMongo(ctx context.Context, evt *event.CommandFinishedEvent) {
	s, ok := scope.FromContext(ctx)
	if !ok {
		return
	}
	statement := evt.CommandName
	if evt.DatabaseName != "" {
		statement = evt.DatabaseName + "." + evt.CommandName
	}
	s.RecordQuery(statement, evt.Duration)
}
