package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctrack/doctrack/internal/document"
	dochandler "github.com/doctrack/doctrack/internal/document/handler"
	"github.com/doctrack/doctrack/internal/reminder"
	"github.com/doctrack/doctrack/pkg/middleware"
)

// RegisterReminderRoutes mounts POST /reminders/send. Admission control runs
// inside the dispatcher, keyed by the caller's client key.
func RegisterReminderRoutes(r gin.IRouter, d *reminder.Dispatcher) {
	r.POST("/reminders/send", func(c *gin.Context) {
		days, err := dochandler.DaysParam(c)
		if err != nil {
			dochandler.WriteError(c, err)
			return
		}
		res, err := d.Send(c.Request.Context(), middleware.ClientKey(c), reminder.Request{
			Days:   days,
			Mode:   c.Query("mode"),
			Target: c.Query("target"),
		})
		switch {
		case err == nil:
			c.JSON(http.StatusOK, res)
		case errors.Is(err, document.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		case errors.Is(err, document.ErrRateLimited):
			c.Header("Retry-After", strconv.Itoa(int(d.Window().Seconds())))
			dochandler.WriteError(c, err)
		default:
			dochandler.WriteError(c, err)
		}
	})
}
