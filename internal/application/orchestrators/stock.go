package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carimport/internal/adapters/blob"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/stock"
	"carimport/internal/domain/upload"
)

// StockStore defines the store interface needed by stock orchestrators.
type StockStore interface {
	GetByID(ctx context.Context, id string) (stock.Car, error)
	Save(ctx context.Context, c stock.Car) error
	Delete(ctx context.Context, id string) error
}

// StockDeps holds dependencies for stock orchestrators.
type StockDeps struct {
	StockStore StockStore
	Blob       blob.Store
	AuditStore AuditRecorder
	GenerateID func() string
	Now        func() time.Time
}

// SaveCarInput carries a new or edited stock listing. Empty ID creates a car.
type SaveCarInput struct {
	ID           string
	Make         string
	Model        string
	Year         int
	MileageKm    int
	Fuel         string
	Transmission string
	PriceCents   int64
	Color        string
	Description  string
	Status       string
	Actor        audit.Actor
}

// ExecuteSaveCar creates or updates a stock car. Images are managed separately.
// PRE: Actor is staff or admin
// POST: Car saved and audited
func ExecuteSaveCar(ctx context.Context, input SaveCarInput, deps StockDeps) (stock.Car, error) {
	now := nowFrom(deps.Now)
	var c stock.Car
	action := audit.ActionCreate
	if input.ID != "" {
		existing, err := deps.StockStore.GetByID(ctx, input.ID)
		if err != nil {
			return stock.Car{}, fmt.Errorf("load stock car: %w", err)
		}
		c = existing
		action = audit.ActionUpdate
	} else {
		c = stock.Car{ID: newID(deps.GenerateID), CreatedAt: now}
	}
	c.Make = input.Make
	c.Model = input.Model
	c.Year = input.Year
	c.MileageKm = input.MileageKm
	c.Fuel = input.Fuel
	c.Transmission = input.Transmission
	c.PriceCents = input.PriceCents
	c.Color = input.Color
	c.Description = input.Description
	c.Status = input.Status
	c.UpdatedAt = now
	c.Normalize()
	if err := c.Validate(now); err != nil {
		return stock.Car{}, err
	}
	if err := deps.StockStore.Save(ctx, c); err != nil {
		return stock.Car{}, fmt.Errorf("save stock car: %w", err)
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContent, action).
		WithResource("stock_car", c.ID).
		WithDescription(fmt.Sprintf("%s %s %d", c.Make, c.Model, c.Year)))
	slog.Info("stock_car_saved", "car_id", c.ID, "status", c.Status, "actor_id", input.Actor.ID)
	return c, nil
}

// ExecuteDeleteCar removes a stock car and its images.
// PRE: caller is staff
// POST: Car deleted; image blobs removed best effort
func ExecuteDeleteCar(ctx context.Context, id string, actor audit.Actor, deps StockDeps) error {
	c, err := deps.StockStore.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load stock car: %w", err)
	}
	if err := deps.StockStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete stock car: %w", err)
	}
	for _, key := range c.Images {
		if err := deps.Blob.Delete(ctx, key); err != nil {
			slog.Warn("stock_image_delete_failed", "car_id", id, "key", key, "error", err)
		}
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(actor, audit.CategoryContent, audit.ActionDelete).
		WithSeverity(audit.SeverityWarning).
		WithResource("stock_car", id).
		WithDescription(fmt.Sprintf("%s %s %d", c.Make, c.Model, c.Year)))
	return nil
}

// AddCarImageInput carries an uploaded photo.
type AddCarImageInput struct {
	CarID    string
	FileName string
	Data     []byte
	Actor    audit.Actor
}

// ExecuteAddCarImage validates a photo, stores it and attaches it to the car.
// PRE: file is a JPEG, PNG, WEBP or HEIC image no larger than 8 MB
// POST: blob stored at stock/<car>/<id><ext> and appended to Images
func ExecuteAddCarImage(ctx context.Context, input AddCarImageInput, deps StockDeps) (stock.Car, error) {
	head := input.Data
	if len(head) > upload.SniffLen {
		head = head[:upload.SniffLen]
	}
	checked, err := upload.Validate(upload.PurposeImage, input.FileName, int64(len(input.Data)), head)
	if err != nil {
		return stock.Car{}, err
	}
	c, err := deps.StockStore.GetByID(ctx, input.CarID)
	if err != nil {
		return stock.Car{}, fmt.Errorf("load stock car: %w", err)
	}
	if len(c.Images) >= stock.MaxImages {
		return stock.Car{}, stock.ErrTooManyImages
	}

	key := fmt.Sprintf("stock/%s/%s%s", c.ID, newID(deps.GenerateID), checked.Extension)
	if err := deps.Blob.Put(ctx, key, input.Data, checked.ContentType); err != nil {
		return stock.Car{}, fmt.Errorf("store image: %w", err)
	}
	if err := c.AddImage(key, nowFrom(deps.Now)); err != nil {
		return stock.Car{}, err
	}
	if err := deps.StockStore.Save(ctx, c); err != nil {
		if delErr := deps.Blob.Delete(ctx, key); delErr != nil {
			slog.Error("stock_image_cleanup_failed", "key", key, "error", delErr)
		}
		return stock.Car{}, fmt.Errorf("save stock car: %w", err)
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryContent, audit.ActionUpdate).
		WithResource("stock_car", c.ID).
		WithDescription("image added"))
	return c, nil
}

// ExecuteRemoveCarImage detaches an image and deletes its blob.
// PRE: key is one of the car's images
// POST: Car saved without the image; blob removed best effort
func ExecuteRemoveCarImage(ctx context.Context, carID, key string, actor audit.Actor, deps StockDeps) (stock.Car, error) {
	c, err := deps.StockStore.GetByID(ctx, carID)
	if err != nil {
		return stock.Car{}, fmt.Errorf("load stock car: %w", err)
	}
	if err := c.RemoveImage(key, nowFrom(deps.Now)); err != nil {
		return stock.Car{}, err
	}
	if err := deps.StockStore.Save(ctx, c); err != nil {
		return stock.Car{}, fmt.Errorf("save stock car: %w", err)
	}
	if err := deps.Blob.Delete(ctx, key); err != nil {
		slog.Warn("stock_image_delete_failed", "car_id", carID, "key", key, "error", err)
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(actor, audit.CategoryContent, audit.ActionUpdate).
		WithResource("stock_car", c.ID).
		WithDescription("image removed"))
	return c, nil
}
