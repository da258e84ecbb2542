package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/device"
	"github.com/MrEthical07/goFleet/middleware"
	"github.com/MrEthical07/goFleet/respcache"
)

func (a *api) listDevices(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFromRequest(r)
	if !ok {
		a.fail(w, r, goFleet.ErrUnauthenticated)
		return
	}
	res, err := a.devices.List(r.Context(), tenant)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if res.Hit {
		w.Header().Set(respcache.HeaderCache, "HIT")
	} else {
		w.Header().Set(respcache.HeaderCache, "MISS")
	}
	writeRaw(w, http.StatusOK, res.Value)
}

func (a *api) createDevice(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFromRequest(r)
	if !ok {
		a.fail(w, r, goFleet.ErrUnauthenticated)
		return
	}
	nd, err := device.DecodeNew(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.devices.Create(r.Context(), tenant, nd)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFromRequest(r)
	if !ok {
		a.fail(w, r, goFleet.ErrUnauthenticated)
		return
	}
	d, err := a.devices.Get(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		a.deviceFail(w, r, err)
		return
	}
	body, err := json.Marshal(d)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, body)
}

func (a *api) updateDevice(w http.ResponseWriter, r *http.Request) {
	tenant, ok := middleware.TenantFromRequest(r)
	if !ok {
		a.fail(w, r, goFleet.ErrUnauthenticated)
		return
	}
	p, err := device.DecodePatch(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.devices.Update(r.Context(), tenant, r.PathValue("id"), p)
	if err != nil {
		a.deviceFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *api) deviceFail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, goFleet.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, msgDeviceNotFound)
		return
	}
	a.fail(w, r, err)
}
