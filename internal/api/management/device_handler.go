package management

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/api/middleware"
	"github.com/edgefleet/armada/internal/api/response"
	"github.com/edgefleet/armada/internal/app"
	"github.com/edgefleet/armada/internal/domain"
)

type DeviceHandler struct {
	devices *app.DeviceService
}

func NewDeviceHandler(devices *app.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerDeviceRequest struct {
	Name         string                     `json:"name"`
	DeviceType   string                     `json:"device_type"`
	SerialNumber string                     `json:"serial_number"`
	MACAddress   string                     `json:"mac_address"`
	HardwareID   string                     `json:"hardware_id"`
	Manufacturer string                     `json:"manufacturer"`
	Model        string                     `json:"model"`
	Location     *domain.DeviceLocation     `json:"location"`
	Capabilities *domain.DeviceCapabilities `json:"capabilities"`
}

func (req registerDeviceRequest) toCommand(userID string) app.RegisterDeviceCommand {
	return app.RegisterDeviceCommand{
		CommandMeta:  app.NewCommandMeta(userID),
		Name:         req.Name,
		DeviceType:   req.DeviceType,
		SerialNumber: req.SerialNumber,
		MACAddress:   req.MACAddress,
		HardwareID:   req.HardwareID,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		Location:     req.Location,
		Capabilities: req.Capabilities,
	}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.RegisterDevice(r.Context(), req.toCommand(middleware.UserID(r.Context())))
	writeCommandResult(w, result, http.StatusCreated)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := response.ParsePagination(r)
	q := r.URL.Query()

	query := app.ListDevicesQuery{
		QueryMeta:   app.NewQueryMeta(middleware.UserID(r.Context())),
		Pagination:  app.Pagination{Page: page, PageSize: pageSize},
		SortBy:      q.Get("sort"),
		SortOrder:   q.Get("order"),
		DeviceTypes: q["device_type"],
		Statuses:    q["status"],
	}
	if m := q.Get("manufacturer"); m != "" {
		query.Manufacturer = &m
	}
	if m := q.Get("model"); m != "" {
		query.Model = &m
	}
	if hl := q.Get("has_location"); hl != "" {
		v := hl == "true"
		query.HasLocation = &v
	}
	query.Capabilities = q["capability"]

	list, err := h.devices.ListDevices(r.Context(), query)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *DeviceHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, pageSize := response.ParsePagination(r)
	q := r.URL.Query()

	result, err := h.devices.SearchDevices(r.Context(), app.SearchDevicesQuery{
		QueryMeta:    app.NewQueryMeta(middleware.UserID(r.Context())),
		SearchTerm:   q.Get("q"),
		DeviceTypes:  q["device_type"],
		Statuses:     q["status"],
		Capabilities: q["capability"],
		Pagination:   app.Pagination{Page: page, PageSize: pageSize},
		SortBy:       q.Get("sort"),
		SortOrder:    q.Get("order"),
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	device, err := h.devices.GetDevice(r.Context(), app.GetDeviceQuery{
		QueryMeta: app.NewQueryMeta(middleware.UserID(r.Context())),
		DeviceID:  id,
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, device)
}

func (h *DeviceHandler) GetBySerialNumber(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetDeviceBySerialNumber(r.Context(), app.GetDeviceBySerialNumberQuery{
		QueryMeta:    app.NewQueryMeta(middleware.UserID(r.Context())),
		SerialNumber: chi.URLParam(r, "serial"),
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, device)
}

type updateDeviceRequest struct {
	Name         *string `json:"name"`
	Manufacturer *string `json:"manufacturer"`
	Model        *string `json:"model"`
}

func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.UpdateDevice(r.Context(), app.UpdateDeviceCommand{
		CommandMeta:  app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:     id,
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
	})
	writeCommandResult(w, result, http.StatusOK)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *DeviceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := domain.ParseDeviceStatus(req.Status)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	meta := app.NewCommandMeta(middleware.UserID(r.Context()))
	var result app.CommandResult
	switch status {
	case domain.StatusActive:
		result = h.devices.ActivateDevice(r.Context(), app.ActivateDeviceCommand{CommandMeta: meta, DeviceID: id})
	case domain.StatusInactive:
		result = h.devices.DeactivateDevice(r.Context(), app.DeactivateDeviceCommand{CommandMeta: meta, DeviceID: id, Reason: req.Reason})
	case domain.StatusMaintenance:
		result = h.devices.SetMaintenanceMode(r.Context(), app.SetMaintenanceModeCommand{CommandMeta: meta, DeviceID: id})
	case domain.StatusDecommissioned:
		result = h.devices.DecommissionDevice(r.Context(), app.DecommissionDeviceCommand{CommandMeta: meta, DeviceID: id})
	}
	writeCommandResult(w, result, http.StatusOK)
}

// Activate, Deactivate, Maintenance and Decommission are the dedicated
// transition endpoints; UpdateStatus is the generic form used by consoles
// that drive transitions from a status dropdown.

func (h *DeviceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}
	result := h.devices.ActivateDevice(r.Context(), app.ActivateDeviceCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
	})
	writeCommandResult(w, result, http.StatusOK)
}

type deactivateRequest struct {
	Reason string `json:"reason"`
}

func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}
	var req deactivateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	result := h.devices.DeactivateDevice(r.Context(), app.DeactivateDeviceCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
		Reason:      req.Reason,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}
	result := h.devices.SetMaintenanceMode(r.Context(), app.SetMaintenanceModeCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) Decommission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}
	result := h.devices.DecommissionDevice(r.Context(), app.DecommissionDeviceCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var location domain.DeviceLocation
	if err := json.NewDecoder(r.Body).Decode(&location); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.UpdateDeviceLocation(r.Context(), app.UpdateDeviceLocationCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
		Location:    location,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) UpdateCapabilities(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var caps domain.DeviceCapabilities
	if err := json.NewDecoder(r.Body).Decode(&caps); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.UpdateDeviceCapabilities(r.Context(), app.UpdateDeviceCapabilitiesCommand{
		CommandMeta:  app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:     id,
		Capabilities: caps,
	})
	writeCommandResult(w, result, http.StatusOK)
}

type configValueRequest struct {
	Value interface{} `json:"value"`
}

func (h *DeviceHandler) SetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req configValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.UpdateDeviceConfiguration(r.Context(), app.UpdateDeviceConfigurationCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
		Key:         chi.URLParam(r, "key"),
		Value:       req.Value,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) RemoveConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	result := h.devices.RemoveDeviceConfiguration(r.Context(), app.RemoveDeviceConfigurationCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
		Key:         chi.URLParam(r, "key"),
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	result := h.devices.DeleteDevice(r.Context(), app.DeleteDeviceCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
	})
	if !result.Success {
		writeCommandResult(w, result, http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkStatusRequest struct {
	DeviceIDs []uuid.UUID `json:"device_ids"`
	Status    string      `json:"status"`
	Reason    string      `json:"reason"`
}

func (h *DeviceHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.devices.BulkUpdateStatus(r.Context(), app.BulkUpdateStatusCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceIDs:   req.DeviceIDs,
		Status:      req.Status,
		Reason:      req.Reason,
	})
	// Partial failure still returns the per-item breakdown with 207 semantics
	// flattened into the result body.
	response.JSON(w, http.StatusOK, result)
}

type importRequest struct {
	Devices []registerDeviceRequest `json:"devices"`
}

func (h *DeviceHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := middleware.UserID(r.Context())
	cmd := app.ImportDevicesCommand{CommandMeta: app.NewCommandMeta(userID)}
	for _, d := range req.Devices {
		cmd.Devices = append(cmd.Devices, d.toCommand(userID))
	}

	result := h.devices.ImportDevices(r.Context(), cmd)
	response.JSON(w, http.StatusOK, result)
}

func (h *DeviceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	result := h.devices.SyncDevice(r.Context(), app.SyncDeviceCommand{
		CommandMeta: app.NewCommandMeta(middleware.UserID(r.Context())),
		DeviceID:    id,
	})
	writeCommandResult(w, result, http.StatusOK)
}

func (h *DeviceHandler) Stale(w http.ResponseWriter, r *http.Request) {
	threshold := 3600
	if t := r.URL.Query().Get("threshold_seconds"); t != "" {
		parsed, err := strconv.Atoi(t)
		if err != nil || parsed <= 0 {
			response.Error(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = parsed
	}

	stale, err := h.devices.GetStaleDevices(r.Context(), app.GetStaleDevicesQuery{
		QueryMeta:        app.NewQueryMeta(middleware.UserID(r.Context())),
		ThresholdSeconds: threshold,
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"devices": stale, "count": len(stale)})
}

func (h *DeviceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.devices.GetStatistics(r.Context(), app.GetDeviceStatisticsQuery{
		QueryMeta: app.NewQueryMeta(middleware.UserID(r.Context())),
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func (h *DeviceHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	query := app.GetDeviceMetricsQuery{
		QueryMeta: app.NewQueryMeta(middleware.UserID(r.Context())),
		DeviceID:  id,
	}
	if s := r.URL.Query().Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		query.Since = &since
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 0 {
			response.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = limit
	}

	metrics, err := h.devices.GetDeviceMetrics(r.Context(), query)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, metrics)
}

func (h *DeviceHandler) Health(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}

	health, err := h.devices.GetDeviceHealth(r.Context(), app.GetDeviceHealthQuery{
		QueryMeta: app.NewQueryMeta(middleware.UserID(r.Context())),
		DeviceID:  id,
	})
	if err != nil {
		writeQueryError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, health)
}

// writeCommandResult maps a CommandResult onto an HTTP status: created or
// ok on success, 400 for validation failures, 404 for a missing device,
// 409 for conflicts, 500 for anything unexpected.
func writeCommandResult(w http.ResponseWriter, result app.CommandResult, successStatus int) {
	if result.Success {
		response.JSON(w, successStatus, result)
		return
	}
	status := http.StatusInternalServerError
	switch result.Kind {
	case app.KindInvalid:
		status = http.StatusBadRequest
	case app.KindNotFound:
		status = http.StatusNotFound
	case app.KindConflict:
		status = http.StatusConflict
	}
	response.JSON(w, status, result)
}

func writeQueryError(w http.ResponseWriter, err error) {
	var verrs app.ValidationErrors
	if errors.As(err, &verrs) {
		response.ValidationFailed(w, "query validation failed", verrs)
		return
	}
	var domainVerr *domain.ValidationError
	if errors.As(err, &domainVerr) {
		response.Error(w, http.StatusBadRequest, domainVerr.Error())
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "device not found")
		return
	}
	response.Error(w, http.StatusInternalServerError, "internal error")
}
