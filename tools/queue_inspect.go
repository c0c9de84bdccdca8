package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"

	"sparkchat/domain"
)

// Inspection CLI for the matchmaking store: dumps every per-mode
// waiting list and the broken-session snapshots as tables. Read-only,
// meant to be pointed at a live instance while debugging pairing
// behaviour.
func main() {
	addr := flag.String("addr", "localhost:6379", "Redis address")
	db := flag.Int("db", 0, "Redis database")
	queuePrefix := flag.String("queue-prefix", "matchmaking", "Queue key prefix")
	snapshotPrefix := flag.String("snapshot-prefix", "broken", "Snapshot key prefix")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: *addr, DB: *db})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis unreachable: ", err)
	}

	if err := dumpQueues(ctx, client, *queuePrefix); err != nil {
		log.Fatal(err)
	}
	if err := dumpSnapshots(ctx, client, *snapshotPrefix); err != nil {
		log.Fatal(err)
	}
}

func dumpQueues(ctx context.Context, client *redis.Client, prefix string) error {
	table := newTable([]string{"Mode", "Username", "Gender", "Age", "Interests", "Waiting Since"})

	now := time.Now()
	for _, mode := range domain.AllModes() {
		fields, err := client.HGetAll(ctx, fmt.Sprintf("%s:%s", prefix, mode)).Result()
		if err != nil {
			return fmt.Errorf("reading queue %s: %w", mode, err)
		}
		for username, raw := range fields {
			var entry domain.QueueEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				fmt.Printf("Error unmarshaling entry %s/%s: %v\n", mode, username, err)
				continue
			}
			waiting := now.Sub(time.Unix(0, entry.JoinedAt)).Round(time.Second)
			table.Append([]string{
				string(mode),
				entry.Username,
				string(entry.Gender),
				fmt.Sprintf("%d", entry.Age),
				fmt.Sprintf("%v", entry.Interests),
				waiting.String(),
			})
		}
	}

	fmt.Println("WAITING QUEUES")
	table.Render()
	return nil
}

func dumpSnapshots(ctx context.Context, client *redis.Client, prefix string) error {
	table := newTable([]string{"Key", "Gender", "Age", "Mode", "TTL"})

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+":*", 100).Result()
		if err != nil {
			return fmt.Errorf("scanning snapshots: %w", err)
		}
		for _, key := range keys {
			raw, err := client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var profile domain.Profile
			if err := json.Unmarshal([]byte(raw), &profile); err != nil {
				fmt.Printf("Error unmarshaling snapshot %s: %v\n", key, err)
				continue
			}
			ttl, _ := client.TTL(ctx, key).Result()
			table.Append([]string{
				key,
				string(profile.Gender),
				fmt.Sprintf("%d", profile.Age),
				string(profile.Mode),
				ttl.Round(time.Second).String(),
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	fmt.Println("\nBROKEN-SESSION SNAPSHOTS")
	table.Render()
	return nil
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
