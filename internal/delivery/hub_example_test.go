package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/playback-beacon/internal/beacon"
)

// ExampleHub_Emit demonstrates emitting a record and flushing via Close.
func ExampleHub_Emit() {
	var total int
	hub := NewHub(Config{BufferSize: 4}, sinkFunc(func(context.Context, Record) error {
		total++
		return nil
	}))

	hub.Emit(Record{
		SessionID: "0190b6a4-0000-7000-8000-000000000001",
		Provider:  ProviderPrimary,
		TS:        time.Unix(0, 0),
		Beacon:    beacon.Beacon{Category: "Video", Action: "play"},
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("records forwarded: %d\n", total)
	// Output:
	// records forwarded: 1
}

// ExampleNewQueue shows a tracker's legacy queue feeding the hub.
func ExampleNewQueue() {
	var actions []string
	hub := NewHub(Config{BufferSize: 4}, sinkFunc(func(_ context.Context, rec Record) error {
		actions = append(actions, rec.Beacon.Action)
		return nil
	}))

	sender := beacon.LegacyQueueProvider(NewQueue(hub, "session-7", fixedClock{now: time.Unix(0, 0)}, nil))
	sender.Send(beacon.Beacon{Category: "Video", Action: "enter fullscreen", Value: beacon.Value(42)})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println(actions)
	// Output:
	// [enter fullscreen]
}

type sinkFunc func(context.Context, Record) error

func (f sinkFunc) Consume(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
