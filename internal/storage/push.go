package storage

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// UpsertPushSubscription stores a Web Push subscription keyed by its
// endpoint URL. Re-subscribing with the same endpoint overwrites.
func (s *BboltStorage) UpsertPushSubscription(sub DBPushSubscription) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("push subscription missing endpoint")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := sub.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal push subscription: %w", err)
		}
		return tx.Bucket(bucketPushSubs).Put(sub.Key(), data)
	})
}

// ListPushSubscriptions returns every stored subscription.
func (s *BboltStorage) ListPushSubscriptions() ([]DBPushSubscription, error) {
	var subs []DBPushSubscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPushSubs).ForEach(func(k, v []byte) error {
			var sub DBPushSubscription
			if err := sub.UnmarshalBinary(v); err != nil {
				return err
			}
			subs = append(subs, sub)
			return nil
		})
	})
	return subs, err
}

// DeletePushSubscription drops the subscription for the endpoint. Used when
// the push service reports the subscription gone.
func (s *BboltStorage) DeletePushSubscription(endpoint string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPushSubs).Delete([]byte(endpoint))
	})
}
