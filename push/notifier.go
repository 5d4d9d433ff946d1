package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	fallbackClientName = "a client"
	fallbackWorkerName = "A worker"
	scheduleURL        = "/dienstplan"
)

// AppointmentChange carries what the notifier needs about a committed
// appointment mutation. PreviousWorkerIDs is nil unless the worker set was
// replaced.
type AppointmentChange struct {
	FirmaID           string
	AppointmentID     string
	ClientID          string
	WorkerIDs         []string
	PreviousWorkerIDs []string
	IsOpen            bool
	PreviousIsOpen    bool
	TimeChanged       bool
}

// Notifier maps appointment lifecycle changes to push notifications.
type Notifier struct {
	push  *Service
	store Store
}

func NewNotifier(push *Service, store Store) *Notifier {
	return &Notifier{push: push, store: store}
}

// AppointmentCreated pushes every assigned worker.
func (n *Notifier) AppointmentCreated(ctx context.Context, c AppointmentChange) error {
	client := n.clientName(ctx, c.ClientID)
	return n.push.SendToWorkers(ctx, c.WorkerIDs, Message{
		Title: "New Appointment",
		Body:  fmt.Sprintf("You have been assigned to an appointment with %s.", client),
		URL:   scheduleURL,
		Tag:   "appointment-" + c.AppointmentID,
	})
}

// AppointmentUpdated pushes directors on open/close transitions, workers on
// a reschedule, and the worker diff when the set was replaced.
func (n *Notifier) AppointmentUpdated(ctx context.Context, c AppointmentChange) error {
	client := n.clientName(ctx, c.ClientID)

	var errs []error
	switch {
	case c.IsOpen && !c.PreviousIsOpen:
		errs = append(errs, n.push.SendToDirectors(ctx, c.FirmaID, Message{
			Title: "Appointment Started",
			Body:  fmt.Sprintf("%s started an appointment with %s.", n.workerNames(ctx, c.WorkerIDs), client),
			URL:   "/map/" + c.AppointmentID,
			Tag:   "appointment-open-" + c.AppointmentID,
		}))
	case !c.IsOpen && c.PreviousIsOpen:
		errs = append(errs, n.push.SendToDirectors(ctx, c.FirmaID, Message{
			Title: "Appointment Finished",
			Body:  fmt.Sprintf("%s finished an appointment with %s.", n.workerNames(ctx, c.WorkerIDs), client),
			URL:   scheduleURL,
			Tag:   "appointment-close-" + c.AppointmentID,
		}))
	case c.TimeChanged:
		errs = append(errs, n.push.SendToWorkers(ctx, c.WorkerIDs, Message{
			Title: "Appointment Time Changed",
			Body:  fmt.Sprintf("Your appointment with %s has been rescheduled.", client),
			URL:   scheduleURL,
			Tag:   "appointment-rescheduled-" + c.AppointmentID,
		}))
	}

	if c.PreviousWorkerIDs != nil {
		added, removed := DiffWorkers(c.PreviousWorkerIDs, c.WorkerIDs)
		if len(added) > 0 {
			errs = append(errs, n.push.SendToWorkers(ctx, added, Message{
				Title: "New Assignment",
				Body:  fmt.Sprintf("You have been assigned to an appointment with %s.", client),
				URL:   scheduleURL,
				Tag:   "appointment-" + c.AppointmentID,
			}))
		}
		if len(removed) > 0 {
			errs = append(errs, n.push.SendToWorkers(ctx, removed, Message{
				Title: "Assignment Removed",
				Body:  fmt.Sprintf("You have been removed from an appointment with %s.", client),
				URL:   scheduleURL,
				Tag:   "appointment-" + c.AppointmentID,
			}))
		}
	}

	return errors.Join(errs...)
}

// AppointmentDeleted pushes every previously assigned worker.
func (n *Notifier) AppointmentDeleted(ctx context.Context, c AppointmentChange) error {
	client := n.clientName(ctx, c.ClientID)
	return n.push.SendToWorkers(ctx, c.WorkerIDs, Message{
		Title: "Appointment Cancelled",
		Body:  fmt.Sprintf("Your appointment with %s has been cancelled.", client),
		URL:   scheduleURL,
		Tag:   "appointment-" + c.AppointmentID,
	})
}

// DiffWorkers returns the IDs in next but not prev, and in prev but not next.
func DiffWorkers(prev, next []string) (added, removed []string) {
	inPrev := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		inPrev[id] = struct{}{}
	}
	inNext := make(map[string]struct{}, len(next))
	for _, id := range next {
		inNext[id] = struct{}{}
	}

	for _, id := range next {
		if _, ok := inPrev[id]; !ok {
			added = append(added, id)
			inPrev[id] = struct{}{}
		}
	}
	for _, id := range prev {
		if _, ok := inNext[id]; !ok {
			removed = append(removed, id)
			inNext[id] = struct{}{}
		}
	}
	return added, removed
}

func (n *Notifier) clientName(ctx context.Context, clientID string) string {
	name, err := n.store.ClientName(ctx, clientID)
	if err != nil || name == "" {
		return fallbackClientName
	}
	return name
}

func (n *Notifier) workerNames(ctx context.Context, workerIDs []string) string {
	names, err := n.store.WorkerNames(ctx, workerIDs)
	if err != nil {
		return fallbackWorkerName
	}
	known := names[:0]
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			known = append(known, name)
		}
	}
	if len(known) == 0 {
		return fallbackWorkerName
	}
	return strings.Join(known, ", ")
}
