package handlers

import (
	"exercisetracker/internal/models"
	"exercisetracker/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests for users and their exercise logs.
type UserHandler struct {
	service *services.UserService
	log     *logrus.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService, log *logrus.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the user routes with the Fiber router.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Get("/deleteTests", h.HandleDeleteTestUsers)
	userRoutes.Post("/:id/exercises", h.HandleAddExercise)
	userRoutes.Get("/:id/logs", h.HandleGetLog)
}

type createUserRequest struct {
	Username string `form:"username" json:"username"`
}

type userResponse struct {
	Username string `json:"username"`
	ID       string `json:"_id"`
}

type addExerciseRequest struct {
	Description string `form:"description" json:"description"`
	Duration    string `form:"duration" json:"duration"`
	Date        string `form:"date" json:"date"`
}

type exerciseResponse struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Date        string `json:"date"`
	Duration    int    `json:"duration"`
	Description string `json:"description"`
}

type logEntry struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

type logResponse struct {
	ID       string     `json:"_id"`
	Username string     `json:"username"`
	Count    int        `json:"count"`
	Log      []logEntry `json:"log"`
}

// HandleCreateUser creates a user, or returns the existing one with the same
// username.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := parseBody(c, &req); err != nil {
		return h.invalidBody(c, err)
	}

	user, err := h.service.CreateOrFindUser(c.UserContext(), req.Username)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(userResponse{Username: user.Username, ID: user.ID})
}

// HandleListUsers returns every user with their exercises.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(users)
}

// HandleDeleteTestUsers removes users created by automated test runs.
func (h *UserHandler) HandleDeleteTestUsers(c *fiber.Ctx) error {
	n, err := h.service.DeleteTestUsers(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"deletedCount": n})
}

// HandleAddExercise appends an exercise to a user's log.
func (h *UserHandler) HandleAddExercise(c *fiber.Ctx) error {
	var req addExerciseRequest
	if err := parseBody(c, &req); err != nil {
		return h.invalidBody(c, err)
	}

	logged, err := h.service.AddExercise(c.UserContext(), c.Params("id"), services.ExerciseInput{
		Description: req.Description,
		Duration:    req.Duration,
		Date:        req.Date,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.WithFields(logrus.Fields{
		"user_id":  logged.UserID,
		"duration": logged.Exercise.Duration,
	}).Debug("exercise logged")

	return c.JSON(exerciseResponse{
		ID:          logged.UserID,
		Username:    logged.Username,
		Date:        services.FormatDate(logged.Exercise.Date),
		Duration:    logged.Exercise.Duration,
		Description: logged.Exercise.Description,
	})
}

// HandleGetLog returns a user's exercises filtered by the from, to and limit
// query parameters.
func (h *UserHandler) HandleGetLog(c *fiber.Ctx) error {
	log, err := h.service.GetLog(c.UserContext(), c.Params("id"), services.LogInput{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Limit: c.Query("limit"),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	entries := make([]logEntry, 0, len(log.Exercises))
	for _, e := range log.Exercises {
		entries = append(entries, logEntry{
			Description: e.Description,
			Duration:    e.Duration,
			Date:        services.FormatDate(e.Date),
		})
	}
	return c.JSON(logResponse{
		ID:       log.UserID,
		Username: log.Username,
		Count:    log.Count,
		Log:      entries,
	})
}

// parseBody binds a form or JSON body. An empty body leaves out untouched so
// that missing fields are reported by validation instead.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}

func (h *UserHandler) invalidBody(c *fiber.Ctx, err error) error {
	h.log.WithError(err).WithField("path", c.Path()).Info("invalid request body")
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body."})
}
