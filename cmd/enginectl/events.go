package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"euno-analytics-be/pkg/events"
	pktNats "euno-analytics-be/pkg/nats"

	"github.com/spf13/cobra"
)

var (
	natsURLFlag   string
	eventTypeFlag string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow engine events on NATS",
	Long:  "Prints QUESTION_ANSWERED, QUESTION_DENIED and CONVERSATION_DELETED events as JSON lines until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&natsURLFlag, "nats", os.Getenv("NATS_URL"), "NATS server URL")
	eventsCmd.Flags().StringVar(&eventTypeFlag, "type", "", "Only this event type")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	if natsURLFlag == "" {
		return errors.New("--nats or NATS_URL is required")
	}
	sub, err := pktNats.NewSubscriber(natsURLFlag)
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc, err := sub.Subscribe(ctx, eventTypeFlag, "", func(_ context.Context, evt events.Event) error {
		line, err := events.Encode(evt)
		if err != nil {
			return err
		}
		fmt.Println(string(line))
		return nil
	})
	if err != nil {
		return err
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
