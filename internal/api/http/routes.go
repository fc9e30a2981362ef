package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/pm25-data-api/internal/pm25"
)

var validate = validator.New()

const topCount = 10

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *pm25.Service) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "pm25-data-api",
			"records": service.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	data := app.Group("/data")

	data.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(service.All())
	})

	data.Post("/", func(c *fiber.Ctx) error {
		var req createRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		id, err := service.Add(req.toNewRecord())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to add data entry")
		}
		return c.JSON(fiber.Map{
			"message": "Data added successfully",
			"id":      id,
		})
	})

	data.Get("/stats", func(c *fiber.Ctx) error {
		st, err := service.Stats()
		if errors.Is(err, pm25.ErrEmptyTable) {
			return fiber.NewError(fiber.StatusNotFound, "No data available to compute statistics")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute statistics")
		}
		return c.JSON(st)
	})

	data.Get("/filter", func(c *fiber.Ctx) error {
		lat, err := optionalFloat(c, "lat")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		lon, err := optionalFloat(c, "lon")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if lat == nil && lon == nil {
			return fiber.NewError(fiber.StatusBadRequest, "At least one of 'lat' or 'lon' must be provided")
		}

		recs := service.Filter(lat, lon)
		if len(recs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No data found for the provided filters")
		}
		return c.JSON(recs)
	})

	data.Get("/region", func(c *fiber.Ctx) error {
		var q regionQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		recs := service.InRegion(q.toBox())
		if len(recs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No data found within the specified region")
		}
		return c.JSON(recs)
	})

	data.Get("/normalized", func(c *fiber.Ctx) error {
		recs, err := service.Normalized()
		if errors.Is(err, pm25.ErrDegenerateRange) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to normalize data")
		}
		return c.JSON(recs)
	})

	data.Get("/top10", func(c *fiber.Ctx) error {
		recs := service.TopN(topCount)
		if len(recs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No data available to determine top polluted locations")
		}
		return c.JSON(recs)
	})

	data.Get("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "id must be an integer")
		}
		r, err := service.Get(id)
		if err != nil {
			return notFoundOr500(err)
		}
		return c.JSON(r)
	})

	data.Put("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "id must be an integer")
		}
		var f pm25.UpdateFields
		if err := c.BodyParser(&f); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		if err := service.Update(id, f); err != nil {
			return notFoundOr500(err)
		}
		return c.JSON(fiber.Map{"message": "Data updated successfully"})
	})

	data.Delete("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "id must be an integer")
		}
		if err := service.Delete(id); err != nil {
			return notFoundOr500(err)
		}
		return c.JSON(fiber.Map{"message": "Data deleted successfully"})
	})
}

func notFoundOr500(err error) error {
	if errors.Is(err, pm25.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Data entry not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// createRequest is the body of POST /data. Pointers tell a missing field
// apart from a zero value.
type createRequest struct {
	Latitude    *float64 `json:"Latitude" validate:"required"`
	Longitude   *float64 `json:"Longitude" validate:"required"`
	Measurement *float64 `json:"PM2.5" validate:"required"`
}

func (r createRequest) toNewRecord() pm25.NewRecord {
	return pm25.NewRecord{
		Latitude:    *r.Latitude,
		Longitude:   *r.Longitude,
		Measurement: *r.Measurement,
	}
}

// regionQuery holds the query parameters of the region endpoint.
type regionQuery struct {
	LatMin *float64 `validate:"required"`
	LatMax *float64 `validate:"required"`
	LonMin *float64 `validate:"required"`
	LonMax *float64 `validate:"required"`
}

func (q *regionQuery) bind(c *fiber.Ctx) error {
	var err error
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"lat_min", &q.LatMin},
		{"lat_max", &q.LatMax},
		{"lon_min", &q.LonMin},
		{"lon_max", &q.LonMax},
	} {
		if *p.dst, err = optionalFloat(c, p.name); err != nil {
			return err
		}
	}
	return nil
}

func (q regionQuery) toBox() pm25.Box {
	return pm25.Box{
		LatMin: *q.LatMin,
		LatMax: *q.LatMax,
		LonMin: *q.LonMin,
		LonMax: *q.LonMax,
	}
}

// optionalFloat parses a float query parameter; an absent parameter is nil.
func optionalFloat(c *fiber.Ctx, name string) (*float64, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + name + ": must be a number")
	}
	return &v, nil
}
