package controller

import (
	"strconv"

	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/pkg/serverutils"
	"euno-analytics-be/internal/service"
	"euno-analytics-be/pkg/schema"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAnalyticsController interface {
	RegisterRoutes(r fiber.Router)
	SubmitQuestion(ctx *fiber.Ctx) error
	CreateConversation(ctx *fiber.Ctx) error
	ListConversations(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	Usage(ctx *fiber.Ctx) error
	RegisterDataSource(ctx *fiber.Ctx) error
	ShowDataSource(ctx *fiber.Ctx) error
}

type analyticsController struct {
	analyticsService    service.IAnalyticsService
	conversationService service.IConversationService
	dataSources         service.DataSourceProvider
	jwtSecret           string
}

func NewAnalyticsController(
	analyticsService service.IAnalyticsService,
	conversationService service.IConversationService,
	dataSources service.DataSourceProvider,
	jwtSecret string,
) IAnalyticsController {
	return &analyticsController{
		analyticsService:    analyticsService,
		conversationService: conversationService,
		dataSources:         dataSources,
		jwtSecret:           jwtSecret,
	}
}

func (c *analyticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analytics/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("questions", c.SubmitQuestion)
	h.Get("conversations", c.ListConversations)
	h.Post("conversations", c.CreateConversation)
	h.Get("conversations/:id/messages", c.ListMessages)
	h.Delete("conversations/:id", c.DeleteConversation)
	h.Get("usage", c.Usage)
	h.Post("data-sources", c.RegisterDataSource)
	h.Get("data-sources/:id", c.ShowDataSource)
}

func userID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Locals("user_id").(string))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid user")
	}
	return id, nil
}

func pathID(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid id")
	}
	return id, nil
}

func (c *analyticsController) SubmitQuestion(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitQuestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.analyticsService.SubmitQuestion(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

func (c *analyticsController) CreateConversation(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversationService.Create(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *analyticsController) ListConversations(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	res, err := c.conversationService.ListConversations(ctx.UserContext(), userId, ctx.Query("q"), limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list conversations", res))
}

func (c *analyticsController) ListMessages(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	res, err := c.conversationService.List(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list messages", res))
}

func (c *analyticsController) DeleteConversation(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	if err := c.conversationService.Delete(ctx.UserContext(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}

func (c *analyticsController) Usage(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}

	res, err := c.analyticsService.Usage(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get usage", res))
}

func (c *analyticsController) RegisterDataSource(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}

	var req dto.RegisterDataSourceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ds, err := c.dataSources.Register(ctx.UserContext(), userId, req.Name, entity.SourceKindFile, schema.NewResultSet(req.Columns, req.Rows))
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success register data source", toDataSourceResponse(ds)))
}

func (c *analyticsController) ShowDataSource(ctx *fiber.Ctx) error {
	userId, err := userID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	ds, err := c.dataSources.Get(ctx.UserContext(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show data source", toDataSourceResponse(ds)))
}

func toDataSourceResponse(ds *entity.DataSource) *dto.DataSourceResponse {
	return &dto.DataSourceResponse{
		Id:            ds.Id,
		Name:          ds.Name,
		SourceKind:    ds.SourceKind,
		RowCount:      ds.RowCount,
		SchemaProfile: ds.SchemaProfile,
		RefreshedAt:   ds.RefreshedAt,
	}
}
