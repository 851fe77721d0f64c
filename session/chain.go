package session

import (
	"errors"

	"github.com/golang/glog"
)

/*
Chain layers several stores. Reads return the first layer holding a token,
writes go to every layer. A layer that fails is logged and skipped; an
operation only fails when every layer failed.
*/
type Chain []Store

func (c Chain) Get(unitUID string) (string, bool, error) {
	var errs []error
	for _, s := range c {
		t, ok, err := s.Get(unitUID)
		if err != nil {
			glog.Warningf("session store %T: %v", s, err)
			errs = append(errs, err)
			continue
		}
		if ok {
			return t, true, nil
		}
	}
	if len(c) > 0 && len(errs) == len(c) {
		return "", false, errors.Join(errs...)
	}
	return "", false, nil
}

func (c Chain) Set(unitUID, token string) error {
	return c.each(func(s Store) error { return s.Set(unitUID, token) })
}

func (c Chain) Delete(unitUID string) error {
	return c.each(func(s Store) error { return s.Delete(unitUID) })
}

func (c Chain) Clear() error {
	return c.each(func(s Store) error { return s.Clear() })
}

func (c Chain) each(op func(Store) error) error {
	var errs []error
	for _, s := range c {
		if err := op(s); err != nil {
			glog.Warningf("session store %T: %v", s, err)
			errs = append(errs, err)
		}
	}
	if len(c) > 0 && len(errs) == len(c) {
		return errors.Join(errs...)
	}
	return nil
}
