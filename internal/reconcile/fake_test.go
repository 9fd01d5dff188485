package reconcile

import (
	"context"
	"fmt"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// fakeRemote is an in-memory CloudVision. It records every call as
// "op:name" so tests can assert exactly what would have hit the wire.
type fakeRemote struct {
	root    string
	rootErr error

	// containers maps name to key. The root is added by newFakeRemote.
	containers map[string]string

	existsErr    map[string]error
	keyErr       map[string]error
	createErr    map[string]error
	createStatus map[string]string
	taskIDs      map[string][]string

	calls   []string
	creates []createCall
	nextKey int
}

type createCall struct {
	Name, ParentName, ParentKey string
}

func newFakeRemote(existing ...string) *fakeRemote {
	f := &fakeRemote{
		root:         "Tenant",
		containers:   map[string]string{"Tenant": "root"},
		existsErr:    map[string]error{},
		keyErr:       map[string]error{},
		createErr:    map[string]error{},
		createStatus: map[string]string{},
		taskIDs:      map[string][]string{},
	}
	for _, name := range existing {
		f.add(name)
	}
	return f
}

func (f *fakeRemote) add(name string) string {
	f.nextKey++
	key := fmt.Sprintf("container_%d", f.nextKey)
	f.containers[name] = key
	return key
}

func (f *fakeRemote) RootContainerName(_ context.Context) (string, error) {
	f.calls = append(f.calls, "root")
	if f.rootErr != nil {
		return "", f.rootErr
	}
	return f.root, nil
}

func (f *fakeRemote) ContainerExists(_ context.Context, name string) (bool, error) {
	f.calls = append(f.calls, "exists:"+name)
	if err := f.existsErr[name]; err != nil {
		return false, err
	}
	_, ok := f.containers[name]
	return ok, nil
}

func (f *fakeRemote) ContainerKey(_ context.Context, name string) (string, error) {
	f.calls = append(f.calls, "key:"+name)
	if err := f.keyErr[name]; err != nil {
		return "", err
	}
	key, ok := f.containers[name]
	if !ok {
		return "", model.NewRemoteError("get container", name, model.ErrNotFound)
	}
	return key, nil
}

func (f *fakeRemote) CreateContainer(_ context.Context, name, parentName, parentKey string) (model.CreateResponse, error) {
	f.calls = append(f.calls, "create:"+name)
	f.creates = append(f.creates, createCall{Name: name, ParentName: parentName, ParentKey: parentKey})
	if err := f.createErr[name]; err != nil {
		return model.CreateResponse{}, err
	}
	if status, ok := f.createStatus[name]; ok {
		return model.CreateResponse{Status: status}, nil
	}
	f.add(name)
	return model.CreateResponse{Status: "success", TaskIDs: f.taskIDs[name]}, nil
}

func (f *fakeRemote) createdNames() []string {
	var names []string
	for _, c := range f.creates {
		names = append(names, c.Name)
	}
	return names
}
