package controllers

import (
	"strconv"

	"lifeline/models"
	"lifeline/services"
	"lifeline/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type DispatchController struct {
	dispatchService *services.DispatchService
}

func NewDispatchController(dispatchService *services.DispatchService) *DispatchController {
	return &DispatchController{
		dispatchService: dispatchService,
	}
}

// =================== EMERGENCY LIFECYCLE ===================

// CreateEmergency opens a new emergency request and alerts nearby units
func (dc *DispatchController) CreateEmergency(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	emergency, err := dc.dispatchService.CreateEmergency(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Create emergency failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency created successfully", emergency.ToResponse())
}

// GetEmergency gets a specific emergency
func (dc *DispatchController) GetEmergency(c *gin.Context) {
	emergencyID := c.Param("emergencyId")

	emergency, err := dc.dispatchService.GetEmergency(c.Request.Context(), emergencyID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency retrieved successfully", emergency.ToResponse())
}

// AcceptEmergency claims a pending emergency for the calling ambulance
func (dc *DispatchController) AcceptEmergency(c *gin.Context) {
	ambulanceID := c.GetString("userID")
	emergencyID := c.Param("emergencyId")

	if ambulanceID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	emergency, ambulance, err := dc.dispatchService.AcceptEmergency(c.Request.Context(), ambulanceID, emergencyID)
	if err != nil {
		logrus.Warnf("Accept emergency %s by %s failed: %v", emergencyID, ambulanceID, err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency accepted successfully", gin.H{
		"emergency": emergency.ToResponse(),
		"ambulance": ambulance.ToResponse(),
	})
}

// CompleteEmergency closes an assigned emergency
func (dc *DispatchController) CompleteEmergency(c *gin.Context) {
	ambulanceID := c.GetString("userID")
	emergencyID := c.Param("emergencyId")

	if ambulanceID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	emergency, err := dc.dispatchService.CompleteEmergency(c.Request.Context(), ambulanceID, emergencyID)
	if err != nil {
		logrus.Warnf("Complete emergency %s failed: %v", emergencyID, err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency completed successfully", emergency.ToResponse())
}

// CancelEmergency withdraws a pending emergency
func (dc *DispatchController) CancelEmergency(c *gin.Context) {
	userID := c.GetString("userID")
	emergencyID := c.Param("emergencyId")

	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	emergency, err := dc.dispatchService.CancelEmergency(c.Request.Context(), userID, emergencyID)
	if err != nil {
		logrus.Warnf("Cancel emergency %s failed: %v", emergencyID, err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency cancelled successfully", emergency.ToResponse())
}

// =================== DASHBOARD QUERIES ===================

// GetNearbyEmergencies lists open emergencies around a point
func (dc *DispatchController) GetNearbyEmergencies(c *gin.Context) {
	longitude, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid longitude")
		return
	}

	latitude, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid latitude")
		return
	}

	radiusMeters := 10000.0
	if radiusStr := c.Query("radius"); radiusStr != "" {
		radiusMeters, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil || radiusMeters <= 0 {
			utils.BadRequestResponse(c, "Invalid radius")
			return
		}
	}

	emergencies, err := dc.dispatchService.ListNearbyPending(c.Request.Context(), longitude, latitude, radiusMeters)
	if err != nil {
		logrus.Errorf("Nearby emergencies query failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Nearby emergencies retrieved successfully", emergencies)
}
