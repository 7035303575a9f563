package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"task-api/internal/server"
	"task-api/internal/task"
)

func newServeCmd(o *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, topic := range []string{task.TopicCreated, task.TopicDone, task.TopicUndone} {
				_ = a.bus.Subscribe(topic, func(b []byte) error {
					var ev task.Event
					if err := json.Unmarshal(b, &ev); err != nil {
						return err
					}
					a.log.Info("task event", "type", ev.Type, "task_id", ev.Task.ID, "event_id", ev.ID)
					return nil
				})
			}

			srv := server.New(a.tasks,
				server.WithLogger(a.log),
				server.WithShutdownTimeout(a.cfg.HTTP.ShutdownTimeout),
			)
			return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
		},
	}
	cmd.Flags().String("http-addr", ":8080", "http listen address")
	_ = o.v.BindPFlag("http.addr", cmd.Flags().Lookup("http-addr"))
	return cmd
}
