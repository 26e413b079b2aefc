package core

import (
	"fmt"
	"slices"
	"sync"

	gorilla "github.com/gorilla/mux"
	"github.com/samber/lo"
)

var (
	apis   = make(map[string]API)
	apisMu sync.RWMutex
)

type API interface {
	Name() string
	Configure(router *gorilla.Router) error
}

type APIInit interface {
	Init() ([]ContextBuilderOption, error)
}

func RegisterAPI(id string, api API) {
	apisMu.Lock()
	defer apisMu.Unlock()

	if _, ok := apis[id]; ok {
		panic(fmt.Sprintf("api already registered: %s", id))
	}

	apis[id] = api
}

func GetAPIList() []API {
	apisMu.RLock()
	defer apisMu.RUnlock()

	ids := lo.Keys(apis)
	slices.Sort(ids)

	return lo.Map(ids, func(id string, _ int) API {
		return apis[id]
	})
}
