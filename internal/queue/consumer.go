// Package queue contains the background consumer that listens to the
// platform's onboarding queues and writes structured logs to
// logs/onboarding.log.
package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartOnboardingConsumer connects to RabbitMQ, declares the onboarding
// queues (durable), and starts consuming messages from each. Every message
// is appended to logs/onboarding.log in a single-line, human-friendly
// format. The function runs a reconnect loop; it keeps running and logs
// any processing errors while rejecting the offending message so the
// server continues operating.
func StartOnboardingConsumer(url string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("onboarding-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn); err != nil {
            log.Printf("onboarding-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("onboarding-consumer: set QoS failed: %v", err)
    }

    for _, name := range []string{UserRegisteredQueue, ProfileCreatedQueue, FeedbackSubmittedQueue} {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
    }

    deliveries := make(chan queueDelivery)
    for _, name := range []string{UserRegisteredQueue, ProfileCreatedQueue, FeedbackSubmittedQueue} {
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        go func(queue string, in <-chan amqp.Delivery) {
            for d := range in {
                deliveries <- queueDelivery{queue: queue, d: d}
            }
        }(name, msgs)
    }

    conErr := make(chan *amqp.Error, 1)
    conn.NotifyClose(conErr)
    for {
        select {
        case qd := <-deliveries:
            if err := handleMessage(qd.queue, qd.d.Body); err != nil {
                log.Printf("onboarding-consumer: handle message failed: %v", err)
                _ = qd.d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = qd.d.Ack(false)
        case err := <-conErr:
            if err != nil {
                return err
            }
            return errors.New("connection closed")
        }
    }
}

type queueDelivery struct {
    queue string
    d     amqp.Delivery
}

func handleMessage(queue string, body []byte) error {
    line, err := formatLine(queue, body)
    if err != nil {
        return err
    }
    // Ensure logs directory exists
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "onboarding.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(queue string, body []byte) (string, error) {
    switch queue {
    case UserRegisteredQueue:
        var ev UserRegisteredEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] User registered | user_id=%d | email=%q | role=%s\n",
            ev.RegisteredAt, ev.UserID, ev.Email, ev.Role), nil
    case ProfileCreatedQueue:
        var ev ProfileCreatedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Profile created | user_id=%d | profile_id=%d | type=%s\n",
            ev.CreatedAt, ev.UserID, ev.ProfileID, ev.ProfileType), nil
    case FeedbackSubmittedQueue:
        var ev FeedbackSubmittedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return "", fmt.Errorf("unmarshal: %w", err)
        }
        return fmt.Sprintf("[%s] Feedback submitted | feedback_id=%d | user_id=%d | category=%s | rating=%d\n",
            ev.SubmittedAt, ev.FeedbackID, ev.UserID, ev.Category, ev.Rating), nil
    }
    return "", fmt.Errorf("unknown queue %q", queue)
}
