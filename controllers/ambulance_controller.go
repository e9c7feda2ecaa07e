package controllers

import (
	"lifeline/models"
	"lifeline/services"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AmbulanceController struct {
	ambulanceService *services.AmbulanceService
	dispatchService  *services.DispatchService
}

func NewAmbulanceController(ambulanceService *services.AmbulanceService, dispatchService *services.DispatchService) *AmbulanceController {
	return &AmbulanceController{
		ambulanceService: ambulanceService,
		dispatchService:  dispatchService,
	}
}

// RegisterAmbulance registers a new ambulance unit (offline until activated)
func (ac *AmbulanceController) RegisterAmbulance(c *gin.Context) {
	var req models.RegisterAmbulanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	ambulance, err := ac.ambulanceService.Register(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("Register ambulance failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Ambulance registered successfully", ambulance.ToResponse())
}

// GetAmbulance gets a specific ambulance
func (ac *AmbulanceController) GetAmbulance(c *gin.Context) {
	ambulanceID := c.Param("ambulanceId")

	ambulance, err := ac.ambulanceService.Get(c.Request.Context(), ambulanceID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ambulance retrieved successfully", ambulance.ToResponse())
}

// UpdateStatus changes the calling ambulance's duty status
func (ac *AmbulanceController) UpdateStatus(c *gin.Context) {
	ambulanceID := c.GetString("userID")
	if ambulanceID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateAmbulanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	ambulance, err := ac.dispatchService.SetAmbulanceStatus(c.Request.Context(), ambulanceID, req.Status)
	if err != nil {
		logrus.Warnf("Status change for ambulance %s failed: %v", ambulanceID, err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Ambulance status updated successfully", ambulance.ToResponse())
}

// ReportLocation records the calling ambulance's position
func (ac *AmbulanceController) ReportLocation(c *gin.Context) {
	ambulanceID := c.GetString("userID")
	if ambulanceID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.LocationReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if len(req.Location) != 2 {
		utils.BadRequestResponse(c, "Location must be [longitude, latitude]")
		return
	}

	err := ac.dispatchService.ReportLocation(c.Request.Context(), ambulanceID, req.Location[0], req.Location[1])
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", nil)
}
