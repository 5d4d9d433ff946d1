package services

import (
	"context"

	"gorm.io/gorm"

	"scheduling-server/push"
	"scheduling-server/realtime"
)

// AppointmentNotifier turns appointment changes into push notifications.
type AppointmentNotifier interface {
	AppointmentCreated(ctx context.Context, c push.AppointmentChange) error
	AppointmentUpdated(ctx context.Context, c push.AppointmentChange) error
	AppointmentDeleted(ctx context.Context, c push.AppointmentChange) error
}

// PhotoCleaner removes stored report photos by URL.
type PhotoCleaner interface {
	DeleteAll(ctx context.Context, urls []string) int
}

// Deps are the collaborators shared by the mutation services.
type Deps struct {
	DB         *gorm.DB
	Publisher  realtime.Publisher
	Notifier   AppointmentNotifier
	Photos     PhotoCleaner
	Background *Background
}

// publish emits event after a commit without blocking the caller.
func (d *Deps) publish(event realtime.ChangeEvent) {
	if d.Publisher == nil {
		return
	}
	d.Background.Go("publish:"+string(event.Type), func(ctx context.Context) error {
		return d.Publisher.Publish(ctx, event)
	})
}

// publishEntity emits the routing-only event used by entities other than
// appointments.
func (d *Deps) publishEntity(firmaID string, eventType realtime.EventType) {
	d.publish(realtime.ChangeEvent{Type: eventType, FirmaID: firmaID})
}

func (d *Deps) notify(task string, fn func(ctx context.Context, n AppointmentNotifier) error) {
	if d.Notifier == nil {
		return
	}
	d.Background.Go(task, func(ctx context.Context) error {
		return fn(ctx, d.Notifier)
	})
}

func (d *Deps) cleanupPhotos(urls []string) {
	if d.Photos == nil || len(urls) == 0 {
		return
	}
	d.Background.Go("photo-cleanup", func(ctx context.Context) error {
		d.Photos.DeleteAll(ctx, urls)
		return nil
	})
}
