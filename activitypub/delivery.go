package activitypub

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/deemkeen/glyptodon/app"
	"github.com/deemkeen/glyptodon/domain"
)

// StartDeliveryWorker starts the background worker that drains the
// delivery queue. It also refreshes stale board mirrors on a slower tick.
func StartDeliveryWorker(ctx *app.Context) {
	log.Println("Starting federation delivery worker...")

	ticker := time.NewTicker(10 * time.Second)
	refresh := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-ticker.C:
				processDeliveryQueue(ctx)
			case <-refresh.C:
				RefreshStaleBoards(ctx)
			}
		}
	}()
}

// processDeliveryQueue attempts every due delivery once, backing failures
// off exponentially and giving up after 10 attempts.
func processDeliveryQueue(ctx *app.Context) {
	err, items := ctx.DB.ReadPendingDeliveries(50)
	if err != nil {
		log.Printf("DeliveryWorker: Failed to read queue: %v", err)
		return
	}

	if items == nil || len(*items) == 0 {
		return
	}

	log.Printf("DeliveryWorker: Processing %d pending deliveries", len(*items))

	for _, item := range *items {
		if err := deliverQueued(ctx, &item); err != nil {
			item.Attempts++
			backoffMinutes := []int{1, 5, 15, 60, 240, 1440}[min(item.Attempts-1, 5)]
			item.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)

			if item.Attempts >= 10 {
				log.Printf("DeliveryWorker: Giving up on delivery to %s after %d attempts", item.InboxURI, item.Attempts)
				ctx.DB.DeleteDelivery(item.Id)
			} else {
				log.Printf("DeliveryWorker: Delivery to %s failed (attempt %d), retry in %dm: %v",
					item.InboxURI, item.Attempts, backoffMinutes, err)
				ctx.DB.UpdateDeliveryAttempt(item.Id, item.Attempts, item.NextRetryAt)
			}
		} else {
			log.Printf("DeliveryWorker: Successfully delivered to %s", item.InboxURI)
			ctx.DB.DeleteDelivery(item.Id)
		}
	}
}

// deliverQueued signs and posts one queued activity to its inbox.
func deliverQueued(ctx *app.Context, item *domain.DeliveryQueueItem) error {
	signer, err := signerForActor(ctx, item.ActorURI)
	if err != nil {
		return fmt.Errorf("failed to resolve signing actor: %w", err)
	}
	privateKey, err := ParsePrivateKey(signer.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	body := []byte(item.ActivityJSON)
	req, err := http.NewRequest("POST", item.InboxURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "glyptodon/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", Digest(body))

	if err := SignRequest(req, privateKey, signer.KeyId); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := ctx.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}

	return nil
}
