package scenario

import (
	"fmt"

	"github.com/marcoskonzen/trustedge/internal/world"
	"github.com/marcoskonzen/trustedge/pkg/apperror"
)

// powerModelAttrs mirrors the nested power_model_parameters object an
// EdgeServer record carries.
type powerModelAttrs struct {
	StaticPowerPercentage float64 `json:"static_power_percentage"`
	MaxPowerConsumption   float64 `json:"max_power_consumption"`
}

type edgeServerAttrs struct {
	ID                         int64           `json:"id"`
	CPU                        float64         `json:"cpu"`
	Memory                     float64         `json:"memory"`
	Disk                       float64         `json:"disk"`
	CPUDemand                  float64         `json:"cpu_demand"`
	MemoryDemand               float64         `json:"memory_demand"`
	DiskDemand                 float64         `json:"disk_demand"`
	MaxConcurrentLayerDownload int             `json:"max_concurrent_layer_downloads"`
	TimeToBoot                 int             `json:"time_to_boot"`
	Status                     string          `json:"status"`
	Available                  bool            `json:"available"`
	IsRegistry                 bool            `json:"is_registry"`
	PowerModelParameters       powerModelAttrs `json:"power_model_parameters"`
}

type networkLinkAttrs struct {
	ID                int64   `json:"id"`
	Bandwidth         float64 `json:"bandwidth"`
	Delay             float64 `json:"delay"`
	TransmissionDelay float64 `json:"transmission_delay"`
}

type containerLayerAttrs struct {
	ID          int64   `json:"id"`
	Digest      string  `json:"digest"`
	Size        float64 `json:"size"`
	Instruction string  `json:"instruction"`
}

type containerImageAttrs struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Tag          string   `json:"tag"`
	Digest       string   `json:"digest"`
	Architecture string   `json:"architecture"`
	Layers       []string `json:"layers"`
}

type serviceAttrs struct {
	ID           int64   `json:"id"`
	CPUDemand    float64 `json:"cpu_demand"`
	MemoryDemand float64 `json:"memory_demand"`
	State        float64 `json:"state"`
	Available    bool    `json:"available"`
}

type applicationAttrs struct {
	ID int64 `json:"id"`
}

type accessWindowAttrs struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type userAttrs struct {
	ID                 int64                          `json:"id"`
	Coordinates        [2]float64                     `json:"coordinates"`
	CoordinatesTrace   [][2]float64                   `json:"coordinates_trace"`
	Delays             map[string]float64             `json:"delays"`
	DelaySLAs          map[string]float64             `json:"delay_slas"`
	MaxDowntimeAllowed map[string]int                 `json:"maximum_downtime_allowed"`
	AccessWindows      map[string][]accessWindowAttrs `json:"access_windows"`
	MobilityModel      string                         `json:"mobility_model"`
}

type intBoundsAttrs struct {
	Lower    int  `json:"lower"`
	Upper    int  `json:"upper"`
	Infinite bool `json:"infinite"`
}

type failureModelAttrs struct {
	ID                      int64          `json:"id"`
	Kind                    string         `json:"kind"`
	InitialFailureTimeStep  int            `json:"initial_failure_time_step"`
	NumberOfFailures        intBoundsAttrs `json:"number_of_failures"`
	FailureDuration         intBoundsAttrs `json:"failure_duration"`
	IntervalBetweenFailures intBoundsAttrs `json:"interval_between_failures"`
	IntervalBetweenSets     intBoundsAttrs `json:"interval_between_sets"`
	TimeToFailureShape      float64        `json:"time_to_failure_shape"`
	TimeToFailureScale      float64        `json:"time_to_failure_scale"`
	TimeToRepairShape       float64        `json:"time_to_repair_shape"`
	TimeToRepairScale       float64        `json:"time_to_repair_scale"`
	TimeToRepairMax         float64        `json:"time_to_repair_max"`
}

func toIntBounds(a intBoundsAttrs) world.IntBounds {
	return world.IntBounds{Lower: a.Lower, Upper: a.Upper, Infinite: a.Infinite}
}

func statusFromString(s string) world.Status {
	switch s {
	case "failing":
		return world.StatusFailing
	case "booting":
		return world.StatusBooting
	default:
		return world.StatusAvailable
	}
}

// BuildWorld interprets doc into a simulation-ready World. It never mutates
// doc, so callers can still Save the original document afterwards without
// losing fields this package doesn't model.
func BuildWorld(doc *Document) (*world.World, error) {
	w := world.New()

	for _, rec := range doc.NetworkSwitch {
		id, ok := rec.attrID()
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, "NetworkSwitch record missing id")
		}
		w.Switches[world.ID(id)] = &world.Switch{ID: world.ID(id)}
	}

	// BaseStation maps onto a network switch 1:1 in this port: a base
	// station's own id is only ever referenced from User.base_station, so
	// we resolve it straight through to the switch it wraps.
	baseStationSwitch := map[world.ID]world.ID{}
	for _, rec := range doc.BaseStation {
		id, ok := rec.attrID()
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, "BaseStation record missing id")
		}
		sw, ok := decodeRelationship(rec.Relationships, "network_switch")
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("BaseStation %d missing network_switch relationship", id))
		}
		baseStationSwitch[world.ID(id)] = world.ID(sw.ID)
	}

	for _, rec := range doc.NetworkLink {
		var attrs networkLinkAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding NetworkLink")
		}
		nodes := decodeRelationshipList(rec.Relationships, "nodes")
		if len(nodes) != 2 {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("NetworkLink %d must reference exactly two switches", attrs.ID))
		}
		a, b := world.ID(nodes[0].ID), world.ID(nodes[1].ID)
		w.Links[world.NewLinkKey(a, b)] = &world.NetworkLink{
			A: a, B: b,
			BandwidthMbps:     attrs.Bandwidth,
			DelayMs:           attrs.Delay,
			TransmissionDelay: attrs.TransmissionDelay,
		}
	}

	registryServers := map[world.ID]bool{}
	for _, rec := range doc.ContainerRegistry {
		if ref, ok := decodeRelationship(rec.Relationships, "edge_server"); ok {
			registryServers[world.ID(ref.ID)] = true
		}
	}

	for _, rec := range doc.EdgeServer {
		var attrs edgeServerAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding EdgeServer")
		}
		sw, ok := decodeRelationship(rec.Relationships, "network_switch")
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("EdgeServer %d missing network_switch relationship", attrs.ID))
		}

		srv := &world.Server{
			ID:       world.ID(attrs.ID),
			SwitchID: world.ID(sw.ID),
			Capacity: world.Capacity{CPUCores: attrs.CPU, MemoryGB: attrs.Memory, DiskMB: attrs.Disk},
			Demand:   world.Demand{CPUCores: attrs.CPUDemand, MemoryGB: attrs.MemoryDemand, DiskMB: attrs.DiskDemand},
			Power: world.PowerModel{
				StaticFraction: attrs.PowerModelParameters.StaticPowerPercentage,
				MaxWatts:       attrs.PowerModelParameters.MaxPowerConsumption,
			},
			Status:                     statusFromString(attrs.Status),
			Available:                  attrs.Available,
			TimeToBoot:                 attrs.TimeToBoot,
			MaxConcurrentLayerDownload: attrs.MaxConcurrentLayerDownload,
			IsRegistry:                 attrs.IsRegistry || registryServers[world.ID(attrs.ID)],
		}
		if fm, ok := decodeRelationship(rec.Relationships, "failure_model"); ok {
			srv.FailureModelID = world.ID(fm.ID)
		}
		w.Servers[srv.ID] = srv
	}

	for _, rec := range doc.ContainerLayer {
		var attrs containerLayerAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding ContainerLayer")
		}
		layer := &world.Layer{
			ID:          world.ID(attrs.ID),
			Digest:      attrs.Digest,
			SizeMB:      attrs.Size,
			Instruction: attrs.Instruction,
		}
		if ref, ok := decodeRelationship(rec.Relationships, "server"); ok {
			layer.ServerID = world.ID(ref.ID)
			if srv := w.Servers[layer.ServerID]; srv != nil {
				srv.Layers = append(srv.Layers, layer.ID)
			}
		}
		w.Layers[layer.ID] = layer
	}

	for _, rec := range doc.ContainerImage {
		var attrs containerImageAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding ContainerImage")
		}
		w.Images[world.ID(attrs.ID)] = &world.Image{
			ID:           world.ID(attrs.ID),
			Name:         attrs.Name,
			Tag:          attrs.Tag,
			Digest:       attrs.Digest,
			Architecture: attrs.Architecture,
			LayerDigests: attrs.Layers,
		}
	}

	for _, rec := range doc.Service {
		var attrs serviceAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding Service")
		}
		app, ok := decodeRelationship(rec.Relationships, "application")
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("Service %d missing application relationship", attrs.ID))
		}
		image, ok := decodeRelationship(rec.Relationships, "image")
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("Service %d missing image relationship", attrs.ID))
		}
		svc := &world.Service{
			ID:            world.ID(attrs.ID),
			ApplicationID: world.ID(app.ID),
			ImageID:       world.ID(image.ID),
			CPUDemand:     attrs.CPUDemand,
			MemoryDemand:  attrs.MemoryDemand,
			StateBytes:    attrs.State,
			Available:     attrs.Available,
		}
		if ref, ok := decodeRelationship(rec.Relationships, "server"); ok {
			svc.ServerID = world.ID(ref.ID)
			if srv := w.Servers[svc.ServerID]; srv != nil {
				srv.Services = append(srv.Services, svc.ID)
			}
		}
		w.Services[svc.ID] = svc
	}

	for _, rec := range doc.Application {
		var attrs applicationAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding Application")
		}
		app := &world.Application{ID: world.ID(attrs.ID)}
		for _, ref := range decodeRelationshipList(rec.Relationships, "services") {
			app.Services = append(app.Services, world.ID(ref.ID))
		}
		for _, ref := range decodeRelationshipList(rec.Relationships, "users") {
			app.Users = append(app.Users, world.ID(ref.ID))
		}
		w.Applications[app.ID] = app
	}

	for _, rec := range doc.FailureModel {
		var attrs failureModelAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding FailureModel")
		}
		server, ok := decodeRelationship(rec.Relationships, "edge_server")
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidScenario, fmt.Sprintf("FailureModel %d missing edge_server relationship", attrs.ID))
		}
		initial := attrs.InitialFailureTimeStep
		if initial == 0 {
			initial = 1
		}
		fm := &world.FailureModel{
			ID:                      world.ID(attrs.ID),
			ServerID:                world.ID(server.ID),
			InitialFailureTimeStep:  initial,
			NumberOfFailures:        toIntBounds(attrs.NumberOfFailures),
			FailureDuration:         toIntBounds(attrs.FailureDuration),
			IntervalBetweenFailures: toIntBounds(attrs.IntervalBetweenFailures),
			IntervalBetweenSets:     toIntBounds(attrs.IntervalBetweenSets),
			TimeToFailureShape:      attrs.TimeToFailureShape,
			TimeToFailureScale:      attrs.TimeToFailureScale,
			TimeToRepairShape:       attrs.TimeToRepairShape,
			TimeToRepairScale:       attrs.TimeToRepairScale,
			TimeToRepairMax:         attrs.TimeToRepairMax,
		}
		if attrs.Kind == "weibull_lognormal" {
			fm.Kind = world.FailureWeibullLognormal
		}
		w.FailureModels[fm.ID] = fm
		if srv := w.Servers[fm.ServerID]; srv != nil {
			srv.FailureModelID = fm.ID
		}
	}

	for _, rec := range doc.User {
		var attrs userAttrs
		if err := rec.decodeAttrs(&attrs); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "decoding User")
		}
		u := world.NewUser(world.ID(attrs.ID))
		u.Coordinates = attrs.Coordinates
		u.CoordinatesTrace = attrs.CoordinatesTrace
		u.MobilityModel = attrs.MobilityModel

		if ref, ok := decodeRelationship(rec.Relationships, "base_station"); ok {
			if sw, ok := baseStationSwitch[world.ID(ref.ID)]; ok {
				u.BaseStationID = sw
			} else {
				u.BaseStationID = world.ID(ref.ID)
			}
		}
		if trace, ok := rec.Relationships["base_station_trace"]; ok && trace != nil {
			for _, ref := range decodeRelationshipList(rec.Relationships, "base_station_trace") {
				if sw, ok := baseStationSwitch[world.ID(ref.ID)]; ok {
					u.BaseStationTrace = append(u.BaseStationTrace, sw)
				} else {
					u.BaseStationTrace = append(u.BaseStationTrace, world.ID(ref.ID))
				}
			}
		}

		for appID, v := range attrs.Delays {
			id, err := parseAppID(appID)
			if err != nil {
				return nil, err
			}
			u.Delays[id] = v
		}
		for appID, v := range attrs.DelaySLAs {
			id, err := parseAppID(appID)
			if err != nil {
				return nil, err
			}
			u.DelaySLAs[id] = v
		}
		for appID, v := range attrs.MaxDowntimeAllowed {
			id, err := parseAppID(appID)
			if err != nil {
				return nil, err
			}
			u.MaxDowntimeAllowed[id] = v
		}
		for appID, windows := range attrs.AccessWindows {
			id, err := parseAppID(appID)
			if err != nil {
				return nil, err
			}
			pattern := &world.AccessPattern{}
			for _, win := range windows {
				pattern.Windows = append(pattern.Windows, world.AccessWindow{Start: win.Start, End: win.End})
			}
			u.AccessPatterns[id] = pattern
			u.MakingRequests[id] = len(windows) > 0
		}

		w.Users[u.ID] = u
	}

	return w, nil
}

func parseAppID(s string) (world.ID, error) {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, apperror.Wrap(err, apperror.CodeInvalidScenario, fmt.Sprintf("invalid application id key %q", s))
	}
	return world.ID(n), nil
}
